package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AmirDavoodi/MPEC/internal/env"
	"github.com/AmirDavoodi/MPEC/internal/replay"
	"github.com/AmirDavoodi/MPEC/internal/state"
)

// #region replay-cmd
type replayOpts struct {
	fixtures    []string
	record      string
	description string
	expr        string
	target      int
	variant     string
	actions     string
}

// fixtureReport is the outcome of one fixture run.
type fixtureReport struct {
	Path    string                `json:"path"`
	Summary replay.ReplaySummary  `json:"summary"`
	Results []replay.ReplayResult `json:"results"`
	Diffs   []string              `json:"diffs"`
}

func newReplayCmd(g *globals) *cobra.Command {
	o := &replayOpts{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay scripted actions or fixtures through an environment",
		Long: `replay has two modes.

With --fixture it replays each fixture file and fails if any result differs
from the fixture's expectations.

With --record it steps --actions through the --expr environment and writes the
observed results as a new fixture.`,
		Example: `  mathrl replay --fixture internal/replay/testdata/recursive_intended.json
  mathrl replay --record out.json --expr "2 + 1" --target 3 \
    --actions decompose,apply_base_case,calculate,finish`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(o.fixtures) > 0 && o.record != "":
				return errors.New("replay: --fixture and --record are mutually exclusive")
			case len(o.fixtures) > 0:
				return runFixtures(cmd, g, o.fixtures)
			case o.record != "":
				return runRecord(cmd, o)
			default:
				return errors.New("replay: one of --fixture or --record is required")
			}
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&o.fixtures, "fixture", nil, "fixture JSON file (repeatable)")
	f.StringVar(&o.record, "record", "", "write a fixture to this path")
	f.StringVar(&o.description, "description", "", "description stored in the recorded fixture")
	f.StringVar(&o.expr, "expr", "", "expression to record")
	f.IntVar(&o.target, "target", 0, "expected result")
	f.StringVar(&o.variant, "variant", string(env.VariantRecursive), "recursive or grouping")
	f.StringVar(&o.actions, "actions", "", "comma-separated actions to record")
	return cmd
}

// #endregion replay-cmd

// #region fixture-mode
func runFixtures(cmd *cobra.Command, g *globals, paths []string) error {
	var reports []fixtureReport
	failed := 0
	for _, path := range paths {
		fx, err := replay.LoadFixture(path)
		if err != nil {
			return err
		}
		results, err := fx.Run()
		if err != nil {
			return err
		}
		r := fixtureReport{
			Path:    path,
			Summary: replay.Summarize(results, fx.Target),
			Results: results,
			Diffs:   fx.Check(results),
		}
		if r.Diffs == nil {
			r.Diffs = []string{}
		}
		if len(r.Diffs) > 0 {
			failed++
		}
		reports = append(reports, r)
	}

	if g.jsonOut {
		if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			printReplay(cmd, r)
		}
	}

	if failed > 0 {
		return fmt.Errorf("replay: %d of %d fixtures failed", failed, len(paths))
	}
	return nil
}

func printReplay(cmd *cobra.Command, r fixtureReport) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s\n", r.Path)
	fmt.Fprintf(w, "%-4s  %-28s  %-18s  %-5s  %7s  %-28s  %s\n", "Step", "State", "Action", "Valid", "Reward", "Next", "Done")
	fmt.Fprintf(w, "%-4s+-%-28s+-%-18s+-%-5s+-%7s+-%-28s+-%s\n",
		"----", "----------------------------", "------------------", "-----", "-------", "----------------------------", "----")
	for _, res := range r.Results {
		fmt.Fprintf(w, "%-4d  %-28s  %-18s  %-5v  %+7.1f  %-28s  %v\n",
			res.Step, res.State, res.Action, res.Valid, res.Reward, res.NextState, res.Done)
	}
	s := r.Summary
	fmt.Fprintf(w, "\nsteps=%d reward=%.1f invalid=%d negative=%d final=%q reached=%v\n",
		s.TotalSteps, s.TotalReward, s.InvalidActions, s.NegativeSteps, s.FinalState, s.Reached)
	if len(r.Diffs) == 0 {
		fmt.Fprintf(w, "PASS\n\n")
		return
	}
	for _, d := range r.Diffs {
		fmt.Fprintf(w, "  MISMATCH %s\n", d)
	}
	fmt.Fprintf(w, "FAIL\n\n")
}

// #endregion fixture-mode

// #region record-mode
func runRecord(cmd *cobra.Command, o *replayOpts) error {
	if o.expr == "" || o.actions == "" {
		return errors.New("replay: --record needs --expr and --actions")
	}
	variant, err := env.ParseVariant(o.variant)
	if err != nil {
		return err
	}
	e, err := env.New(variant, o.expr, o.target)
	if err != nil {
		return err
	}

	desc := o.description
	if desc == "" {
		desc = fmt.Sprintf("%s %s = %d", variant, o.expr, o.target)
	}
	fx := replay.NewFixture(desc, e, o.expr, parseActions(o.actions))

	data, err := json.MarshalIndent(fx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(o.record, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d actions, final %q)\n", o.record, len(fx.Actions), fx.ExpectedFinal)
	return nil
}

func parseActions(list string) []state.Action {
	var out []state.Action
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, state.Action(name))
		}
	}
	return out
}

// #endregion record-mode
