package agent

import "github.com/AmirDavoodi/MPEC/internal/state"

// MinExploration is the floor exploration decays towards.
const MinExploration = 0.01

// #region config
// Config holds the agent's learning parameters.
type Config struct {
	LearningRate    float64 // alpha
	DiscountFactor  float64 // gamma
	ExplorationRate float64 // initial epsilon
}

// DefaultConfig returns alpha=0.1, gamma=0.9, epsilon=0.1.
func DefaultConfig() Config {
	return Config{
		LearningRate:    0.1,
		DiscountFactor:  0.9,
		ExplorationRate: 0.1,
	}
}

// #endregion config

// #region rand
// Rand is the randomness the agent draws on. *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// #endregion rand

// #region entry
// Entry is one exported action-value.
type Entry struct {
	State  string       `json:"state"`
	Action state.Action `json:"action"`
	Value  float64      `json:"value"`
}

// #endregion entry
