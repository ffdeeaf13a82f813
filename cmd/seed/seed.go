// Package seed provides the seed command, which loads source entities from
// a YAML file.
package seed

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/invsync/internal/app"
	"github.com/tphakala/invsync/internal/conf"
	"github.com/tphakala/invsync/internal/logger"
	"github.com/tphakala/invsync/internal/source"
)

// Command creates and returns the seed command.
func Command(settings *conf.Settings, build app.BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Write entities from a YAML file into the source store",
		Long:  `Seed upserts every entity listed in a YAML file into the source store. It is
meant for fixtures and for patching individual source rows before a sync.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()

			batch, err := source.DecodeSeed(f)
			if err != nil {
				return err
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

			if err := a.Source.PutBatch(cmd.Context(), batch); err != nil {
				return err
			}
			a.Log.Info("seed file loaded",
				logger.String("file", args[0]),
				logger.Int("entities", len(batch)))
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d entities\n", len(batch))
			return nil
		},
	}

	return cmd
}
