// Package walk provides the walk command, a dry run of the delete phase.
package walk

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tphakala/invsync/internal/app"
	"github.com/tphakala/invsync/internal/conf"
	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/logger"
	"github.com/tphakala/invsync/internal/migration"
)

// Command creates and returns the walk command.
func Command(settings *conf.Settings, build app.BuildInfo) *cobra.Command {
	var countOnly bool

	cmd := &cobra.Command{
		Use:   "walk <kind|path>...",
		Short: "List the documents a sync would delete",
		Long:  `Walk enumerates target documents in the order the delete phase removes them:
sub-collection contents before their parent document. Arguments are kind
names or collection paths. Nothing is written.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWalk(cmd.Context(), cmd.OutOrStdout(), settings, build, args, countOnly)
		},
	}

	cmd.Flags().BoolVar(&countOnly, "count", false, "Print only the number of documents")

	return cmd
}

func runWalk(ctx context.Context, out io.Writer, settings *conf.Settings, build app.BuildInfo, args []string, countOnly bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(settings, build)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Log.Warn("close failed", logger.Error(err))
		}
	}()

	roots := make([]docstore.CollectionRef, 0, len(args))
	for _, arg := range args {
		path := arg
		if o, ok := a.Engine.Orchestrator(arg); ok {
			path = o.RootPath()
		}
		if !docstore.IsCollectionPath(path) {
			return fmt.Errorf("%q is neither a registered kind nor a collection path", arg)
		}
		roots = append(roots, a.Store.Collection(path))
	}

	instructions, err := migration.NewTreeWalker(nil).Enumerate(ctx, roots...)
	if err != nil {
		return err
	}
	if countOnly {
		fmt.Fprintln(out, len(instructions))
		return nil
	}
	for _, in := range instructions {
		fmt.Fprintln(out, in.Doc.Path())
	}
	return nil
}
