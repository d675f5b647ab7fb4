package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitrdm/tempoplan/pkg/plandb"
)

var (
	runMaxSteps int
	runMaxDepth int
	runTimeout  time.Duration
)

func init() {
	runCmd.Flags().IntVar(&runMaxSteps, "max-steps", 1000, "solver step budget (0 = unbounded)")
	runCmd.Flags().IntVar(&runMaxDepth, "max-depth", 100, "solver decision-depth budget (0 = unbounded)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 5*time.Second, "solver wall-clock budget (0 = unbounded)")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <solver-config.yaml>",
	Short: "Run the solver to convergence under a YAML flaw-manager configuration",
	Long: `run loads a solver configuration (§6.2: an ordered list of flaw
managers, each with its own matching rules), builds a small open timeline
problem whose active tokens are not yet ordered on any timeline, and runs
the chronological-backtracking solver to convergence, printing the step
count, depth and final status.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := plandb.LoadSolverConfigFile(args[0])
		if err != nil {
			return err
		}
		managers, err := cfg.Compile()
		if err != nil {
			return err
		}

		db, client, err := buildOpenProblem()
		if err != nil {
			return err
		}

		solver := plandb.NewSolver(db, managers).WithMetrics(plandb.NewMetricsSink())
		if err := solver.Solve(runMaxSteps, runMaxDepth, runTimeout); err != nil {
			return err
		}

		fmt.Printf("steps=%d depth=%d exhausted=%v timed_out=%v logged_transactions=%d\n",
			solver.StepCount(), solver.Depth(), solver.IsExhausted(), solver.IsTimedOut(), len(client.Transactions()))
		if !solver.IsExhausted() && !solver.IsTimedOut() {
			fmt.Println("solved: every flaw resolved")
		} else if solver.IsExhausted() {
			fmt.Println("search space exhausted: no solution within current bounds")
		} else {
			fmt.Println("timed out before a solution was found")
		}
		return nil
	},
}

// buildOpenProblem constructs a small, genuinely underdetermined instance:
// two empty timelines and three tokens, activated up front but each free to
// land on either timeline and in any order, so the solver actually has
// ordering flaws to resolve rather than one handed to it pre-solved.
func buildOpenProblem() (*plandb.PlanDatabase, *plandb.DbClient, error) {
	db := plandb.NewPlanDatabase(false)
	client := plandb.NewDbClient(db, plandb.NewLogger("tempoplan.run", nil), true)

	x, err := client.CreateObject("Resource", "X", true)
	if err != nil {
		return nil, nil, err
	}
	y, err := client.CreateObject("Resource", "Y", true)
	if err != nil {
		return nil, nil, err
	}
	if err := x.Base().Close(); err != nil {
		return nil, nil, err
	}
	if err := y.Base().Close(); err != nil {
		return nil, nil, err
	}

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("T%d", i+1)
		tok, err := client.CreateToken("Resource.use", name, false, false)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Restrict(tok.Duration, plandb.NewIntervalDomain(1, 3)); err != nil {
			return nil, nil, err
		}
		if err := client.Activate(tok); err != nil {
			return nil, nil, err
		}
	}
	return db, client, nil
}
