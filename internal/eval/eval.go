package eval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AmirDavoodi/MPEC/internal/graph"
	"github.com/AmirDavoodi/MPEC/internal/state"
)

// #region eval-harness
// EvalHarness checks a trajectory and its projected record before the policy
// that produced it is committed.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run evaluates traj against target and rec, the record projected from it.
func (h *EvalHarness) Run(traj state.Trajectory, target int, rec graph.Record) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. Target reached: the final state is the bare target value
	reached := endsOn(traj, target)
	check("reached_target", boolValue(reached), reached || !h.config.RequireTarget,
		fmt.Sprintf("final state is not %d", target))

	// 2. Wrong moves
	negatives := negativeSteps(traj)
	check("negative_steps", float64(negatives), negatives <= h.config.MaxNegativeSteps,
		fmt.Sprintf("%d negative steps exceeds %d", negatives, h.config.MaxNegativeSteps))

	// 3. Exactly one start and one end entity
	starts, ends := rec.StartCount(), rec.EndCount()
	check("start_entities", float64(starts), starts == 1,
		fmt.Sprintf("%d start entities, want 1", starts))
	check("end_entities", float64(ends), ends == 1,
		fmt.Sprintf("%d end entities, want 1", ends))

	// informational
	metrics = append(metrics, EvalMetric{Name: "total_reward", Value: traj.TotalReward(), Pass: true})

	reason := "all checks passed"
	switch len(failReasons) {
	case 0:
	case 1:
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	default:
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func endsOn(traj state.Trajectory, target int) bool {
	if len(traj) == 0 {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSpace(traj[len(traj)-1].State.Expression))
	return err == nil && n == target
}

func negativeSteps(traj state.Trajectory) int {
	n := 0
	for _, s := range traj {
		if s.Reward < 0 {
			n++
		}
	}
	return n
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
