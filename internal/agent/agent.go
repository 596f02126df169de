package agent

import (
	"math"

	"github.com/AmirDavoodi/MPEC/internal/state"
	"github.com/AmirDavoodi/MPEC/internal/update"
)

// tieTolerance is how close to the maximum a value must be to join the
// tie-break pool.
const tieTolerance = 1e-9

// #region agent
// Agent is a tabular epsilon-greedy Q-learner. It is not safe for
// concurrent use; parallel training needs one Agent per worker.
type Agent struct {
	table      *QTable
	updateCfg  update.UpdateConfig
	epsilon    float64
	rng        Rand
	trajectory state.Trajectory
}

// New creates an agent with an empty table drawing randomness from rng.
func New(cfg Config, rng Rand) *Agent {
	return &Agent{
		table: NewQTable(),
		updateCfg: update.UpdateConfig{
			LearningRate:   cfg.LearningRate,
			DiscountFactor: cfg.DiscountFactor,
		},
		epsilon: cfg.ExplorationRate,
		rng:     rng,
	}
}

// #endregion agent

// #region select-action
// SelectAction picks among valid with the epsilon-greedy policy. Greedy picks
// break ties uniformly among every action within tieTolerance of the best.
// With no valid actions it returns state.Finish.
func (a *Agent) SelectAction(s state.State, valid []state.Action) state.Action {
	if len(valid) == 0 {
		return state.Finish
	}
	if a.rng.Float64() < a.epsilon {
		return valid[a.rng.IntN(len(valid))]
	}

	best := a.table.Max(s, valid)
	candidates := make([]state.Action, 0, len(valid))
	for _, act := range valid {
		if math.Abs(a.table.Get(s, act)-best) < tieTolerance {
			candidates = append(candidates, act)
		}
	}
	return candidates[a.rng.IntN(len(candidates))]
}

// #endregion select-action

// #region learn
// Update applies the Q-learning rule for one transition and appends the
// step to the trajectory buffer. nextValid empty means no bootstrap term.
func (a *Agent) Update(s state.State, act state.Action, reward float64, next state.State, nextValid []state.Action) update.UpdateResult {
	result := update.Update(a.table.Get(s, act), update.UpdateContext{
		StateKey: s.CanonicalKey(),
		Action:   string(act),
		Reward:   reward,
		MaxNextQ: a.table.Max(next, nextValid),
	}, a.updateCfg)
	a.table.Set(s, act, result.NewValue)
	a.Record(s, act, reward)
	return result
}

// Record appends a step to the trajectory buffer without learning from it.
func (a *Agent) Record(s state.State, act state.Action, reward float64) {
	a.trajectory = append(a.trajectory, state.Step{State: s, Action: act, Reward: reward})
}

// #endregion learn

// #region exploration
// DecayExploration multiplies epsilon by rate, never dropping below
// MinExploration, and returns the new value.
func (a *Agent) DecayExploration(rate float64) float64 {
	a.epsilon = math.Max(MinExploration, a.epsilon*rate)
	return a.epsilon
}

// Epsilon is the current exploration rate.
func (a *Agent) Epsilon() float64 {
	return a.epsilon
}

// SetExploration overrides epsilon, e.g. 0 for a purely greedy evaluation run.
func (a *Agent) SetExploration(eps float64) {
	a.epsilon = eps
}

// #endregion exploration

// #region trajectory
// ResetTrajectory empties the trajectory buffer.
func (a *Agent) ResetTrajectory() {
	a.trajectory = nil
}

// Trajectory returns a copy of the trajectory buffer.
func (a *Agent) Trajectory() state.Trajectory {
	return a.trajectory.Clone()
}

// #endregion trajectory

// #region table-access
// Table exposes the action-value table.
func (a *Agent) Table() *QTable {
	return a.table
}

// LoadEntries restores previously exported values into the table.
func (a *Agent) LoadEntries(entries []Entry) {
	a.table.Load(entries)
}

// #endregion table-access
