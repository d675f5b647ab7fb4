package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitrdm/tempoplan/internal/scenario"
)

func init() {
	rootCmd.AddCommand(demoCmd)
}

var demoCmd = &cobra.Command{
	Use:   "demo <name>",
	Short: "Run one of the built-in worked scenarios",
	Long: fmt.Sprintf(`demo builds and runs one of the built-in scenarios (%v) and prints
its outcome. Each scenario is a small, self-contained plan database
exercising one invariant of the planner core: ordering-choice enumeration,
forced insertion slots, threat-flaw consumption across timelines,
chronological backtracking, the merge-compatibility filter, or archiving.`, scenario.Names()),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := scenario.Run(args[0])
		if err != nil {
			return err
		}
		fmt.Print(result)
		if !result.Solved {
			return fmt.Errorf("scenario %s did not reach its expected outcome", args[0])
		}
		return nil
	},
}
