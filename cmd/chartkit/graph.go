package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/comalice/chartkit/internal/primitives"
	"github.com/comalice/chartkit/internal/production"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <file>",
		Short: "Export the chart visualization",
		Long:  `Outputs the chart as Graphviz DOT, a Mermaid state diagram, JSON or Markdown. States passed with --active are highlighted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			active, _ := cmd.Flags().GetStringSlice("active")

			def, err := loadDefinition(args[0])
			if err != nil {
				return err
			}
			out, err := render(def.Config(), active, format)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringP("format", "f", "dot", "Output format: dot, mermaid, json or markdown")
	cmd.Flags().StringSlice("active", nil, "State IDs to highlight")
	return cmd
}

func render(mc primitives.MachineConfig, active []string, format string) (string, error) {
	v := production.NewVisualizer()
	switch format {
	case "dot":
		return v.ExportDOT(mc, active), nil
	case "mermaid":
		return v.ExportMermaid(mc, active)
	case "markdown", "md":
		return v.ExportMarkdown(mc, active)
	case "json":
		data, err := v.ExportJSON(mc)
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}
