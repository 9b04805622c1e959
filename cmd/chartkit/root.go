package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/logging"
	"github.com/comalice/chartkit/internal/primitives"
)

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chartkit",
		Short:         "chartkit runs hierarchical statecharts",
		Long:          `chartkit validates, visualizes and executes statechart definitions written in YAML or JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// Persistent flags (available to all commands)
	root.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error")

	root.AddCommand(
		newValidateCmd(),
		newGraphCmd(),
		newDescribeCmd(),
		newRunCmd(),
		newServeCmd(),
	)
	return root
}

func loggerFor(cmd *cobra.Command) (*slog.Logger, error) {
	raw, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(raw)
	if err != nil {
		return nil, err
	}
	return logging.NewWithWriter(cmd.ErrOrStderr(), level, false), nil
}

// loadDefinition reads and validates the definition at path.
func loadDefinition(path string) (*core.Definition, error) {
	cfg, err := primitives.LoadFile(path)
	if err != nil {
		return nil, err
	}
	def, err := core.NewDefinition(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}
