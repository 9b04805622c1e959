package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check definitions for consistency",
		Long:  `Builds the state graph of each definition and reports duplicate IDs, dangling targets and misplaced history states. States no transition or default entry reaches are printed as warnings.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				def, err := loadDefinition(path)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s: %s (version %s, %d states)\n",
					path, def.ID(), def.Version(), def.Graph().Len()-1)
				for _, id := range def.Graph().Unreachable() {
					fmt.Fprintf(cmd.OutOrStdout(), "warn %s: state %q is unreachable from the initial state\n", path, id)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d definitions invalid", failed, len(args))
			}
			return nil
		},
	}
}
