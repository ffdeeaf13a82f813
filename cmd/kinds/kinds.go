// Package kinds provides the kinds command
package kinds

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/invsync/internal/conf"
	"github.com/tphakala/invsync/internal/kinds"
	"github.com/tphakala/invsync/internal/migration"
)

// Command creates and returns the kinds command
func Command(settings *conf.Settings) *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "List registered kinds in sync order",
		Long:  `Kinds prints every registered kind, with kinds_file overrides applied, in the order a full sync runs them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listKinds(cmd.OutOrStdout(), settings, asYAML)
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print descriptors as YAML")

	return cmd
}

func listKinds(out io.Writer, settings *conf.Settings, asYAML bool) error {
	reg := kinds.Default()
	if err := settings.ApplyKindsFile(reg); err != nil {
		return err
	}
	order, err := reg.Order()
	if err != nil {
		return err
	}

	descriptors := make([]migration.KindDescriptor, 0, len(order))
	for _, kind := range order {
		p, _ := reg.Get(kind)
		descriptors = append(descriptors, p.Descriptor)
	}

	if asYAML {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any{"kinds": descriptors}); err != nil {
			return fmt.Errorf("encode kinds: %w", err)
		}
		return enc.Close()
	}

	cfg := settings.MigrationConfig()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tROOT\tFILTER SOFT DELETES\tPOST PROCESS\tDEPENDS ON")
	for _, d := range descriptors {
		deps := strings.Join(d.DependsOn, ",")
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\n", d.Kind, d.RootPath(&cfg), d.FilterSoftDeletes, d.PostProcess, deps)
	}
	return tw.Flush()
}
