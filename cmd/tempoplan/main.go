// Command tempoplan drives the constraint-based temporal planner core from
// the shell: configuring a solver from a YAML rule file and running it to
// convergence, or smoke-testing a build against one of the worked
// scenarios of SPEC_FULL.md §8.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tempoplan",
	Short: "Constraint-based temporal planner core",
	Long: `tempoplan runs a constraint-based temporal planner's plan database,
flaw pipeline, and chronological-backtracking solver outside of any embedding
application, for smoke-testing a build and exercising solver configurations.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
