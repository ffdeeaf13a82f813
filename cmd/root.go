package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/invsync/cmd/kinds"
	"github.com/tphakala/invsync/cmd/seed"
	"github.com/tphakala/invsync/cmd/status"
	"github.com/tphakala/invsync/cmd/sync"
	"github.com/tphakala/invsync/cmd/walk"
	"github.com/tphakala/invsync/internal/app"
	"github.com/tphakala/invsync/internal/conf"
)

// RootCommand creates and returns the root command. settings is filled in
// before any sub-command runs.
func RootCommand(settings *conf.Settings, build app.BuildInfo) *cobra.Command {
	var (
		configFile string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "invsync",
		Short:         "Sync legacy inventory entities into the hierarchical document store",
		Version:       build.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/invsync, /etc/invsync)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	rootCmd.AddCommand(
		sync.Command(settings, build),
		kinds.Command(settings),
		walk.Command(settings, build),
		status.Command(settings, build),
		seed.Command(settings, build),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded
		// The flag only ever turns debug on; config and env can set it too.
		if debug {
			settings.Debug = true
		}
		return nil
	}

	return rootCmd
}
