package trainer

import (
	"encoding/json"
	"math"

	"github.com/AmirDavoodi/MPEC/internal/env"
	"github.com/AmirDavoodi/MPEC/internal/graph"
	"github.com/AmirDavoodi/MPEC/internal/state"
)

// #region config
// Config controls the episode loop.
type Config struct {
	NumEpisodes int
	MaxSteps    int     // per-episode bound on top of the environment's own cap
	DecayEvery  int     // decay exploration every N episodes; 0 disables decay
	DecayRate   float64 // multiplier applied at each decay
}

// DefaultConfig returns 1000 episodes of at most 20 steps, decaying by 0.995
// every 100 episodes.
func DefaultConfig() Config {
	return Config{
		NumEpisodes: 1000,
		MaxSteps:    20,
		DecayEvery:  100,
		DecayRate:   0.995,
	}
}

// #endregion config

// #region observer
// EpisodeStats describes one finished episode.
type EpisodeStats struct {
	Problem     string
	Episode     int // 1-based
	TotalReward float64
	Steps       int
	Epsilon     float64 // exploration rate the episode ran with
	FinalState  string
	Reached     bool // final state is the bare target value
	Improved    bool // became the new best trajectory
}

// Observer is notified after every training episode.
type Observer interface {
	ObserveEpisode(stats EpisodeStats)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(stats EpisodeStats)

// ObserveEpisode calls f.
func (f ObserverFunc) ObserveEpisode(stats EpisodeStats) { f(stats) }

// #endregion observer

// #region summary
// Summary is the result of Train.
type Summary struct {
	EpisodeRewards []float64        `json:"episode_rewards"`
	BestReward     float64          `json:"best_reward"`
	BestSolution   state.Trajectory `json:"best_solution"`
	KnowledgeGraph *graph.Record    `json:"knowledge_graph"`
}

// MarshalJSON encodes a best reward of -Inf, meaning no episode ran, as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	out := struct {
		plain
		BestReward *float64 `json:"best_reward"`
	}{plain: plain(s)}
	if !math.IsInf(s.BestReward, -1) {
		out.BestReward = &s.BestReward
	}
	if out.EpisodeRewards == nil {
		out.EpisodeRewards = []float64{}
	}
	if out.BestSolution == nil {
		out.BestSolution = state.Trajectory{}
	}
	return json.Marshal(out)
}

// Solution is the result of SolveProblem.
type Solution struct {
	Problem        string           `json:"problem"`
	TotalReward    float64          `json:"total_reward"`
	SolutionPath   state.Trajectory `json:"solution_path"`
	KnowledgeGraph graph.Record     `json:"knowledge_graph"`
	FinalState     string           `json:"final_state"`
	Reached        bool             `json:"reached"`
}

// SolveOptions tunes SolveProblem.
type SolveOptions struct {
	// Variant selects the environment. Empty means the trainer's own variant.
	Variant env.Variant
	// Greedy runs with exploration disabled instead of the residual epsilon.
	Greedy bool
}

// #endregion summary

// #region batch
// Problem is one entry of a batch.
type Problem struct {
	Variant    env.Variant `json:"variant" yaml:"variant"`
	Expression string      `json:"expression" yaml:"expression"`
	Target     int         `json:"target" yaml:"target"`
}

// String renders the problem as "expr = target".
func (p Problem) String() string {
	return problemLabel(p.Expression, p.Target)
}

// BatchResult pairs a problem with its training summary.
type BatchResult struct {
	Problem Problem `json:"problem"`
	Summary Summary `json:"summary"`
}

// BuildFunc constructs the trainer for the index-th problem of a batch. Each
// call must return a trainer with its own Environment and Agent.
type BuildFunc func(index int, p Problem) (*Trainer, error)

// #endregion batch
