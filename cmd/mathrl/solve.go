package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AmirDavoodi/MPEC/internal/agent"
	"github.com/AmirDavoodi/MPEC/internal/env"
	"github.com/AmirDavoodi/MPEC/internal/policy"
	"github.com/AmirDavoodi/MPEC/internal/trainer"
)

// #region solve-cmd
type solveOpts struct {
	expr    string
	target  int
	variant string
	greedy  bool
	save    bool
}

// solveOutput is the JSON shape of solve.
type solveOutput struct {
	VersionID string           `json:"version_id"`
	Solution  trainer.Solution `json:"solution"`
	GraphID   string           `json:"graph_id,omitempty"`
}

func newSolveCmd(g *globals) *cobra.Command {
	o := &solveOpts{}
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a problem with the active policy",
		Example: `  mathrl solve --expr "2 + 3" --target 5 --greedy
  mathrl solve --expr "1 + 2 + 3" --target 6 --variant grouping --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, g, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.expr, "expr", "", `expression such as "2 + 3"`)
	f.IntVar(&o.target, "target", 0, "expected result")
	f.StringVar(&o.variant, "variant", string(env.VariantRecursive), "recursive or grouping")
	f.BoolVar(&o.greedy, "greedy", false, "disable exploration while solving")
	f.BoolVar(&o.save, "save", false, "store the projected reasoning graph")
	_ = cmd.MarkFlagRequired("expr")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

// #endregion solve-cmd

// #region run-solve
func runSolve(cmd *cobra.Command, g *globals, o *solveOpts) error {
	cfg, err := g.load(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := g.logger(cmd, cfg)

	variant, err := env.ParseVariant(o.variant)
	if err != nil {
		return err
	}
	e, err := env.New(variant, o.expr, o.target)
	if err != nil {
		return err
	}

	ps, gs, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer ps.Close()

	snap, err := ps.GetActive()
	if errors.Is(err, policy.ErrNoActiveSnapshot) {
		return errors.New("solve: no trained policy; run mathrl train first")
	}
	if err != nil {
		return err
	}

	a := agent.New(cfg.AgentParams(), trainer.NewRand(cfg.Seed))
	policy.Restore(snap, a)
	tr := trainer.New(e, a, cfg.TrainerParams(), logger)

	sol, err := tr.SolveProblem(o.expr, o.target, trainer.SolveOptions{Greedy: o.greedy})
	if err != nil {
		return err
	}
	logger.Info("solved", "problem", sol.Problem, "version_id", snap.VersionID,
		"reward", sol.TotalReward, "reached", sol.Reached)

	out := solveOutput{VersionID: snap.VersionID, Solution: sol}
	if o.save {
		id, err := gs.SaveRecord(sol.Problem, sol.KnowledgeGraph)
		if err != nil {
			return err
		}
		out.GraphID = id
	}

	if g.jsonOut {
		return printJSON(cmd.OutOrStdout(), out)
	}
	printSolution(cmd, out)
	return nil
}

func printSolution(cmd *cobra.Command, out solveOutput) {
	w := cmd.OutOrStdout()
	sol := out.Solution
	fmt.Fprintf(w, "problem:  %s\n", sol.Problem)
	fmt.Fprintf(w, "policy:   %s\n", shortID(out.VersionID))
	fmt.Fprintf(w, "reward:   %.2f\n", sol.TotalReward)
	fmt.Fprintf(w, "final:    %s (reached=%v)\n\n", sol.FinalState, sol.Reached)

	fmt.Fprintf(w, "%-4s  %-32s  %-18s  %s\n", "Step", "State", "Action", "Reward")
	fmt.Fprintf(w, "%-4s+-%-32s+-%-18s+-%s\n", "----", "--------------------------------", "------------------", "------")
	for i, s := range sol.SolutionPath {
		fmt.Fprintf(w, "%-4d  %-32s  %-18s  %+.1f\n", i, s.State.Expression, s.Action, s.Reward)
	}
	if out.GraphID != "" {
		fmt.Fprintf(w, "\nsaved graph %s (%d entities, %d relations)\n",
			shortID(out.GraphID), len(sol.KnowledgeGraph.Entities), len(sol.KnowledgeGraph.Relations))
	}
}

// #endregion run-solve
