package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AmirDavoodi/MPEC/internal/agent"
	"github.com/AmirDavoodi/MPEC/internal/config"
	"github.com/AmirDavoodi/MPEC/internal/env"
	"github.com/AmirDavoodi/MPEC/internal/eval"
	"github.com/AmirDavoodi/MPEC/internal/graph"
	"github.com/AmirDavoodi/MPEC/internal/logging"
	"github.com/AmirDavoodi/MPEC/internal/metrics"
	"github.com/AmirDavoodi/MPEC/internal/policy"
	"github.com/AmirDavoodi/MPEC/internal/replay"
	"github.com/AmirDavoodi/MPEC/internal/trainer"
)

// #region train-cmd
type trainOpts struct {
	expr        string
	target      int
	variant     string
	problems    string
	episodes    int
	workers     int
	metricsFile string
	noCommit    bool
	warmStart   []string
}

// trainResult is one row of train output.
type trainResult struct {
	Problem     string           `json:"problem"`
	BestReward  *float64         `json:"best_reward"`
	Reached     bool             `json:"reached"`
	Eval        *eval.EvalResult `json:"eval,omitempty"`
	GraphID     string           `json:"graph_id,omitempty"`
	EpisodeMean float64          `json:"episode_mean"`
}

// trainOutput is the full train output.
type trainOutput struct {
	RunID     string        `json:"run_id"`
	Results   []trainResult `json:"results"`
	VersionID string        `json:"version_id,omitempty"`
}

func newTrainCmd(g *globals) *cobra.Command {
	o := &trainOpts{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train on one problem or a batch and commit the learned policy",
		Example: `  mathrl train --expr "2 + 3" --target 5
  mathrl train --expr "2 + 3 + 4" --target 9 --variant grouping --episodes 500
  mathrl train --problems problems.yaml --workers 4 --metrics-file train.prom
  mathrl train --expr "2 + 3" --target 5 --warm-start internal/replay/testdata/recursive_intended.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, g, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.expr, "expr", "", `expression such as "2 + 3"`)
	f.IntVar(&o.target, "target", 0, "expected result")
	f.StringVar(&o.variant, "variant", string(env.VariantRecursive), "recursive or grouping")
	f.StringVar(&o.problems, "problems", "", "YAML or JSON file listing problems")
	f.IntVar(&o.episodes, "episodes", 0, "episodes per problem (overrides config)")
	f.IntVar(&o.workers, "workers", 0, "problems trained in parallel (overrides config)")
	f.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus textfile metrics here")
	f.BoolVar(&o.noCommit, "no-commit", false, "do not commit a policy snapshot")
	f.StringArrayVar(&o.warmStart, "warm-start", nil, "fixture whose actions seed every agent before training (repeatable)")
	return cmd
}

// #endregion train-cmd

// #region run-train
func runTrain(cmd *cobra.Command, g *globals, o *trainOpts) error {
	cfg, err := g.load(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("episodes") {
		cfg.Training.NumEpisodes = o.episodes
	}
	if cmd.Flags().Changed("workers") {
		cfg.Training.Workers = o.workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := g.logger(cmd, cfg)

	problems, err := o.resolveProblems(cmd)
	if err != nil {
		return err
	}
	fixtures, err := loadFixtures(o.warmStart)
	if err != nil {
		return err
	}

	ps, gs, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer ps.Close()

	runID := uuid.New().String()
	m := metrics.NewTraining()
	sink := &logging.EpisodeSink{DB: ps.DB(), RunID: runID, Logger: logger}

	trainers := make([]*trainer.Trainer, len(problems))
	base := trainer.Builder(cfg.AgentParams(), cfg.TrainerParams(), cfg.Seed, logger, m, sink)
	build := func(i int, p trainer.Problem) (*trainer.Trainer, error) {
		tr, err := base(i, p)
		if err != nil {
			return nil, err
		}
		if err := warmStart(tr.Agent(), fixtures); err != nil {
			return nil, err
		}
		trainers[i] = tr
		return tr, nil
	}

	logger.Info("training started", "run_id", runID, "problems", len(problems),
		"episodes", cfg.Training.NumEpisodes, "workers", cfg.Training.Workers)
	batch, err := trainer.TrainBatch(cmd.Context(), problems, cfg.Training.Workers, build)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	out := trainOutput{RunID: runID}
	harness := eval.NewEvalHarness(eval.DefaultEvalConfig())
	var passed []*agent.Agent
	var labels []string
	for i, r := range batch {
		res, ok, err := evaluate(harness, gs, r)
		if err != nil {
			return err
		}
		out.Results = append(out.Results, res)
		if ok {
			passed = append(passed, trainers[i].Agent())
			labels = append(labels, r.Problem.String())
		}
	}

	if o.metricsFile != "" {
		if err := m.WriteTextfile(o.metricsFile); err != nil {
			return err
		}
	}

	if !o.noCommit {
		versionID, err := commitPolicy(ps, logger, runID, problems, passed, labels)
		if err != nil {
			return err
		}
		out.VersionID = versionID
	}

	if g.jsonOut {
		return printJSON(cmd.OutOrStdout(), out)
	}
	printTrainTable(cmd, out)
	return nil
}

func (o *trainOpts) resolveProblems(cmd *cobra.Command) ([]trainer.Problem, error) {
	if o.problems != "" {
		return config.LoadProblems(o.problems)
	}
	if o.expr == "" || !cmd.Flags().Changed("target") {
		return nil, errors.New("train: --expr and --target are required without --problems")
	}
	v, err := env.ParseVariant(o.variant)
	if err != nil {
		return nil, err
	}
	return []trainer.Problem{{Variant: v, Expression: o.expr, Target: o.target}}, nil
}

func loadFixtures(paths []string) ([]*replay.Fixture, error) {
	fixtures := make([]*replay.Fixture, 0, len(paths))
	for _, path := range paths {
		fx, err := replay.LoadFixture(path)
		if err != nil {
			return nil, err
		}
		fixtures = append(fixtures, fx)
	}
	return fixtures, nil
}

// warmStart teaches a the scripted actions of every fixture on a fresh environment,
// then clears the trajectory buffer so training starts clean.
func warmStart(a *agent.Agent, fixtures []*replay.Fixture) error {
	for _, fx := range fixtures {
		e, err := fx.Environment()
		if err != nil {
			return err
		}
		replay.Teach(a, e, fx.Actions)
	}
	a.ResetTrajectory()
	return nil
}

// evaluate checks one problem's best trajectory and stores its graph. ok
// reports whether the policy may be committed.
func evaluate(h *eval.EvalHarness, gs *graph.Store, r trainer.BatchResult) (trainResult, bool, error) {
	res := trainResult{Problem: r.Problem.String()}
	if n := len(r.Summary.EpisodeRewards); n > 0 {
		var sum float64
		for _, v := range r.Summary.EpisodeRewards {
			sum += v
		}
		res.EpisodeMean = sum / float64(n)
	}
	if r.Summary.KnowledgeGraph == nil {
		return res, false, nil
	}
	best := r.Summary.BestReward
	res.BestReward = &best

	ev := h.Run(r.Summary.BestSolution, r.Problem.Target, *r.Summary.KnowledgeGraph)
	res.Eval = &ev
	if m, ok := ev.Metric("reached_target"); ok {
		res.Reached = m.Value == 1
	}

	id, err := gs.SaveRecord(r.Problem.String(), *r.Summary.KnowledgeGraph)
	if err != nil {
		return res, false, err
	}
	res.GraphID = id
	return res, ev.Passed, nil
}

// commitPolicy merges the passing agents' tables into one snapshot on top of
// the active one.
func commitPolicy(ps *policy.Store, logger *slog.Logger, runID string, problems []trainer.Problem, agents []*agent.Agent, labels []string) (string, error) {
	if len(agents) == 0 {
		logger.Warn("no problem passed evaluation; policy not committed", "run_id", runID)
		return "", nil
	}

	tables := make([][]agent.Entry, len(agents))
	for i, a := range agents {
		tables[i] = a.Table().Entries()
	}
	snap := policy.Capture(agents[0], strings.Join(labels, "; "), batchVariant(problems))
	snap.Entries = policy.Merge(tables...)

	active, err := ps.GetActive()
	switch {
	case err == nil:
		snap.ParentID = active.VersionID
	case !errors.Is(err, policy.ErrNoActiveSnapshot):
		return "", err
	}

	metricsJSON, err := json.Marshal(map[string]any{"run_id": runID, "problems": labels})
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}
	snap.MetricsJSON = string(metricsJSON)

	committed, err := ps.CommitSnapshot(snap)
	if err != nil {
		return "", err
	}
	logger.Info("policy committed", "version_id", committed.VersionID,
		"entries", len(committed.Entries), "parent_id", committed.ParentID)
	return committed.VersionID, nil
}

func batchVariant(problems []trainer.Problem) string {
	v := problems[0].Variant
	for _, p := range problems[1:] {
		if p.Variant != v {
			return "mixed"
		}
	}
	return string(v)
}

// #endregion run-train

// #region train-table
func printTrainTable(cmd *cobra.Command, out trainOutput) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-24s  %8s  %8s  %-7s  %-4s  %s\n", "Problem", "Best", "Mean", "Reached", "Eval", "Graph")
	fmt.Fprintf(w, "%-24s+-%8s+-%8s+-%-7s+-%-4s+-%s\n",
		"------------------------", "--------", "--------", "-------", "----", "--------")
	for _, r := range out.Results {
		best := "-"
		if r.BestReward != nil {
			best = fmt.Sprintf("%.2f", *r.BestReward)
		}
		ev := "-"
		if r.Eval != nil {
			ev = "fail"
			if r.Eval.Passed {
				ev = "pass"
			}
		}
		fmt.Fprintf(w, "%-24s  %8s  %8.2f  %-7v  %-4s  %s\n",
			r.Problem, best, r.EpisodeMean, r.Reached, ev, shortID(r.GraphID))
	}
	if out.VersionID != "" {
		fmt.Fprintf(w, "\ncommitted policy %s (run %s)\n", shortID(out.VersionID), shortID(out.RunID))
	}
}

// #endregion train-table
