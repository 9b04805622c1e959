package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newDescribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <file>",
		Short: "Print a readable summary of a chart",
		Long:  `Renders the chart's states and transitions as Markdown, styled for the terminal when stdout is a TTY.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetBool("raw")

			def, err := loadDefinition(args[0])
			if err != nil {
				return err
			}
			md, err := render(def.Config(), nil, "markdown")
			if err != nil {
				return err
			}
			if raw || !stdoutIsTerminal(cmd) {
				fmt.Fprint(cmd.OutOrStdout(), md)
				return nil
			}

			r, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(), // Automatically detect light/dark background
				glamour.WithWordWrap(100),
			)
			if err != nil {
				return fmt.Errorf("init renderer: %w", err)
			}
			out, err := r.Render(md)
			if err != nil {
				return fmt.Errorf("render markdown: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().Bool("raw", false, "Print plain Markdown even on a terminal")
	return cmd
}

func stdoutIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
