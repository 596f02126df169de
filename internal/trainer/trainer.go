package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AmirDavoodi/MPEC/internal/agent"
	"github.com/AmirDavoodi/MPEC/internal/env"
	"github.com/AmirDavoodi/MPEC/internal/projection"
	"github.com/AmirDavoodi/MPEC/internal/state"
)

// #region trainer
// Trainer runs episodes of one Agent against one Environment. It is not safe
// for concurrent use.
type Trainer struct {
	env       env.Environment
	agent     *agent.Agent
	cfg       Config
	logger    *slog.Logger
	observers []Observer
	problem   string
}

// New wires a trainer. A nil logger discards output.
func New(e env.Environment, a *agent.Agent, cfg Config, logger *slog.Logger, observers ...Observer) *Trainer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Trainer{
		env:       e,
		agent:     a,
		cfg:       cfg,
		logger:    logger,
		observers: observers,
		problem:   problemLabel(e.Reset().Expression, e.Target()),
	}
}

// Agent returns the trained agent.
func (t *Trainer) Agent() *agent.Agent { return t.agent }

// Problem is the "expr = target" label of the training environment.
func (t *Trainer) Problem() string { return t.problem }

// Variant is the training environment's variant.
func (t *Trainer) Variant() env.Variant { return t.env.Variant() }

// #endregion trainer

// #region train
// Train runs cfg.NumEpisodes episodes, keeping the first trajectory whose
// total reward strictly exceeds every earlier one, and projects it.
func (t *Trainer) Train() Summary {
	summary := Summary{
		EpisodeRewards: make([]float64, 0, t.cfg.NumEpisodes),
		BestReward:     math.Inf(-1),
	}
	improvedOnce := false

	for ep := 1; ep <= t.cfg.NumEpisodes; ep++ {
		eps := t.agent.Epsilon()
		total, final, steps := t.runEpisode(t.env, true)
		summary.EpisodeRewards = append(summary.EpisodeRewards, total)

		improved := total > summary.BestReward
		if improved {
			summary.BestReward = total
			summary.BestSolution = t.agent.Trajectory()
			improvedOnce = true
			t.logger.Debug("new best trajectory", "episode", ep, "reward", total, "steps", steps)
		}

		if t.cfg.DecayEvery > 0 && ep%t.cfg.DecayEvery == 0 {
			t.agent.DecayExploration(t.cfg.DecayRate)
			t.logger.Info("training progress",
				"problem", t.problem,
				"episode", ep,
				"reward", total,
				"best", summary.BestReward,
				"epsilon", t.agent.Epsilon(),
			)
		}

		stats := EpisodeStats{
			Problem:     t.problem,
			Episode:     ep,
			TotalReward: total,
			Steps:       steps,
			Epsilon:     eps,
			FinalState:  final.Expression,
			Reached:     reachedTarget(final, t.env.Target()),
			Improved:    improved,
		}
		for _, o := range t.observers {
			o.ObserveEpisode(stats)
		}
	}

	if improvedOnce {
		rec := projection.ProjectRecord(summary.BestSolution)
		summary.KnowledgeGraph = &rec
	}
	return summary
}

// #endregion train

// #region solve
// SolveProblem runs one episode on a fresh environment for expr with the
// table frozen, and projects the resulting trajectory.
func (t *Trainer) SolveProblem(expr string, target int, opts SolveOptions) (Solution, error) {
	variant := opts.Variant
	if variant == "" {
		variant = t.env.Variant()
	}
	fresh, err := env.New(variant, expr, target)
	if err != nil {
		return Solution{}, fmt.Errorf("solve: %w", err)
	}

	if opts.Greedy {
		saved := t.agent.Epsilon()
		t.agent.SetExploration(0)
		defer t.agent.SetExploration(saved)
	}

	total, final, _ := t.runEpisode(fresh, false)
	path := t.agent.Trajectory()
	return Solution{
		Problem:        problemLabel(fresh.Reset().Expression, target),
		TotalReward:    total,
		SolutionPath:   path,
		KnowledgeGraph: projection.ProjectRecord(path),
		FinalState:     final.Expression,
		Reached:        reachedTarget(final, target),
	}, nil
}

// #endregion solve

// #region episode
// runEpisode plays one episode on e. With learn false the table is left
// untouched and steps are only recorded.
func (t *Trainer) runEpisode(e env.Environment, learn bool) (total float64, final state.State, steps int) {
	s := e.Reset()
	t.agent.ResetTrajectory()

	for steps < t.maxSteps(e) {
		valid := e.ValidActions(s)
		act := t.agent.SelectAction(s, valid)
		next, reward, done := e.Step(s, act)

		var nextValid []state.Action
		if !done {
			nextValid = e.ValidActions(next)
		}
		if learn {
			t.agent.Update(s, act, reward, next, nextValid)
		} else {
			t.agent.Record(s, act, reward)
		}

		total += reward
		s = next
		steps++
		if done {
			break
		}
	}
	return total, s, steps
}

func (t *Trainer) maxSteps(e env.Environment) int {
	if t.cfg.MaxSteps > 0 {
		return t.cfg.MaxSteps
	}
	return e.MaxSteps()
}

// #endregion episode

// #region batch
// TrainBatch trains every problem with its own trainer, at most workers at a
// time. Results keep input order. The first build error cancels work that has
// not started yet and is returned.
func TrainBatch(ctx context.Context, problems []Problem, workers int, build BuildFunc) ([]BatchResult, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))

	results := make([]BatchResult, len(problems))
	for i, p := range problems {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tr, err := build(i, p)
			if err != nil {
				return fmt.Errorf("build %q: %w", p.String(), err)
			}
			results[i] = BatchResult{Problem: p, Summary: tr.Train()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Builder returns a BuildFunc that gives each problem a fresh environment and
// an agent seeded with seed+index.
func Builder(agentCfg agent.Config, cfg Config, seed uint64, logger *slog.Logger, observers ...Observer) BuildFunc {
	return func(index int, p Problem) (*Trainer, error) {
		e, err := env.New(p.Variant, p.Expression, p.Target)
		if err != nil {
			return nil, err
		}
		a := agent.New(agentCfg, NewRand(seed+uint64(index)))
		return New(e, a, cfg, logger, observers...), nil
	}
}

// NewRand returns the seeded generator used for exploration and tie-breaks.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// #endregion batch

// #region helpers
func reachedTarget(s state.State, target int) bool {
	n, err := strconv.Atoi(strings.TrimSpace(s.Expression))
	return err == nil && n == target
}

func problemLabel(expr string, target int) string {
	return expr + " = " + strconv.Itoa(target)
}

// #endregion helpers
