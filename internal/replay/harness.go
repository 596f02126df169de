package replay

import (
	"slices"

	"github.com/AmirDavoodi/MPEC/internal/agent"
	"github.com/AmirDavoodi/MPEC/internal/env"
	"github.com/AmirDavoodi/MPEC/internal/state"
)

// #region types
// ReplayResult captures the outcome of one scripted action.
type ReplayResult struct {
	Step      int          `json:"step"`
	State     string       `json:"state"`
	Action    state.Action `json:"action"`
	Valid     bool         `json:"valid"` // action was offered by the environment
	Reward    float64      `json:"reward"`
	NextState string       `json:"next_state"`
	Done      bool         `json:"done"`
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps     int     `json:"total_steps"`
	TotalReward    float64 `json:"total_reward"`
	InvalidActions int     `json:"invalid_actions"`
	NegativeSteps  int     `json:"negative_steps"`
	FinalState     string  `json:"final_state"`
	Done           bool    `json:"done"`
	Reached        bool    `json:"reached"`
}

// #endregion types

// #region replay
// Replay resets e and steps the scripted actions through it, stopping early
// once the environment reports done. Nothing is learned.
func Replay(e env.Environment, actions []state.Action) []ReplayResult {
	return run(e, actions, nil)
}

// Teach replays actions like Replay and applies a Q-learning update to a for
// every step, warm-starting its table from a known solution.
func Teach(a *agent.Agent, e env.Environment, actions []state.Action) []ReplayResult {
	a.ResetTrajectory()
	return run(e, actions, a)
}

func run(e env.Environment, actions []state.Action, learner *agent.Agent) []ReplayResult {
	s := e.Reset()
	results := make([]ReplayResult, 0, len(actions))

	for _, act := range actions {
		valid := slices.Contains(e.ValidActions(s), act)
		next, reward, done := e.Step(s, act)

		if learner != nil {
			var nextValid []state.Action
			if !done {
				nextValid = e.ValidActions(next)
			}
			learner.Update(s, act, reward, next, nextValid)
		}

		results = append(results, ReplayResult{
			Step:      next.Step,
			State:     s.Expression,
			Action:    act,
			Valid:     valid,
			Reward:    reward,
			NextState: next.Expression,
			Done:      done,
		})
		s = next
		if done {
			break
		}
	}
	return results
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, target int) ReplaySummary {
	s := ReplaySummary{TotalSteps: len(results)}
	for _, r := range results {
		s.TotalReward += r.Reward
		if !r.Valid {
			s.InvalidActions++
		}
		if r.Reward < 0 {
			s.NegativeSteps++
		}
	}
	if len(results) > 0 {
		last := results[len(results)-1]
		s.FinalState = last.NextState
		s.Done = last.Done
		s.Reached = last.NextState == itoa(target)
	}
	return s
}

// Trajectory converts results into the (state, action, reward) form the
// projector consumes.
func Trajectory(results []ReplayResult) state.Trajectory {
	traj := make(state.Trajectory, len(results))
	for i, r := range results {
		traj[i] = state.Step{
			State:  state.New(r.State, r.Step-1),
			Action: r.Action,
			Reward: r.Reward,
		}
	}
	return traj
}

// #endregion replay
