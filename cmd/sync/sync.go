// Package sync provides the sync command.
package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/invsync/internal/app"
	"github.com/tphakala/invsync/internal/conf"
	"github.com/tphakala/invsync/internal/logger"
	"github.com/tphakala/invsync/internal/migration"
)

type options struct {
	kinds      []string
	strategy   string
	skipDelete bool
	plan       bool
}

// Command creates and returns the sync command.
func Command(settings *conf.Settings, build app.BuildInfo) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "sync [kind...]",
		Short: "Run sync passes for the given kinds and their dependencies",
		Long:  `Sync pulls every entity of each kind from the source store, transforms the
rows into documents, deletes the kind's existing subtree in the target store
and loads the new documents. Kinds a requested kind depends on run first.
Without arguments every registered kind is synced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.kinds = args
			}
			if cmd.Flags().Changed("skip-delete") {
				settings.Sync.SkipDelete = opts.skipDelete
			}
			if opts.strategy != "" {
				switch migration.Strategy(opts.strategy) {
				case migration.StrategyParallel, migration.StrategyLinear:
				default:
					return fmt.Errorf("unknown strategy %q: must be parallel or linear", opts.strategy)
				}
				settings.Sync.Strategy = opts.strategy
			}
			if len(opts.kinds) == 0 {
				opts.kinds = settings.Sync.Kinds
			}
			return runSync(cmd.Context(), cmd.OutOrStdout(), settings, build, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "Dispatch strategy: parallel or linear (default from config)")
	cmd.Flags().BoolVar(&opts.skipDelete, "skip-delete", false, "Upsert over existing documents instead of deleting the subtree first")
	cmd.Flags().BoolVar(&opts.plan, "plan", false, "Print the kinds that would run, in order, and exit")

	return cmd
}

func runSync(ctx context.Context, out io.Writer, settings *conf.Settings, build app.BuildInfo, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(settings, build)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Log.Warn("close failed", logger.Error(err))
		}
	}()

	order, err := a.Engine.Plan(opts.kinds...)
	if err != nil {
		return err
	}
	if opts.plan {
		for i, kind := range order {
			o, _ := a.Engine.Orchestrator(kind)
			fmt.Fprintf(out, "%d. %s -> %s\n", i+1, kind, o.RootPath())
		}
		return nil
	}

	metricsCtx, stopMetrics := context.WithCancel(ctx)
	done, err := a.ServeMetrics(metricsCtx)
	if err != nil {
		stopMetrics()
		return err
	}
	defer func() {
		stopMetrics()
		if done != nil {
			<-done
		}
	}()

	results, syncErr := a.Engine.Sync(ctx, migration.RunOptions{
		SkipDelete: settings.Sync.SkipDelete,
		Strategy:   migration.Strategy(settings.Sync.Strategy),
	}, opts.kinds...)
	printResults(out, results)
	if syncErr != nil {
		return fmt.Errorf("sync failed: %w", syncErr)
	}
	return nil
}

func printResults(out io.Writer, results []*migration.PassResult) {
	if len(results) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tPHASE\tPULLED\tFILTERED\tDELETED\tDELETE FAILED\tLOADED\tCOMMITS\tDURATION")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Kind, r.Phase, r.Pulled, r.Filtered,
			r.DeletesAttempted-r.DeletesFailed, r.DeletesFailed,
			r.Loaded, r.Commits, r.Duration.Round(time.Millisecond))
	}
	_ = tw.Flush()
}
