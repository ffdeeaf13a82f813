// Package status provides the status command
package status

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/invsync/internal/app"
	"github.com/tphakala/invsync/internal/conf"
	"github.com/tphakala/invsync/internal/datastore/entities"
	"github.com/tphakala/invsync/internal/logger"
)

// Command creates and returns the status command
func Command(settings *conf.Settings, build app.BuildInfo) *cobra.Command {
	var (
		kind   string
		limit  int
		active bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorded sync passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(settings, build)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					a.Log.Warn("close failed", logger.Error(err))
				}
			}()
			return showStatus(cmd.Context(), cmd.OutOrStdout(), a, kind, limit, active)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only show passes of this kind")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of passes to show")
	cmd.Flags().BoolVar(&active, "active", false, "Only show passes that have not finished")

	return cmd
}

func showStatus(ctx context.Context, out io.Writer, a *app.App, kind string, limit int, active bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		runs []entities.SyncRun
		err  error
	)
	if active {
		runs, err = a.Runs.Active(ctx)
	} else {
		runs, err = a.Runs.Recent(ctx, kind, limit)
	}
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no sync passes recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tKIND\tSTATUS\tPHASE\tSTARTED\tDURATION\tLOADED\tDELETE FAILED\tERROR")
	for i := range runs {
		r := &runs[i]
		duration := "-"
		if !r.IsActive() {
			duration = r.Duration().Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Kind, r.Status, r.Phase,
			r.StartedAt.Local().Format(time.DateTime), duration,
			r.Loaded, r.DeletesFailed, r.ErrorMessage)
	}
	return tw.Flush()
}
