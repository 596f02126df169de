package env

import (
	"errors"

	"github.com/AmirDavoodi/MPEC/internal/state"
)

// #region errors
var (
	// ErrMalformedExpression is returned when the construction input is not a
	// '+'-separated list of integers acceptable to the chosen variant.
	ErrMalformedExpression = errors.New("malformed expression")
	// ErrUnknownVariant is returned by New for an unrecognized variant name.
	ErrUnknownVariant = errors.New("unknown environment variant")
)

// #endregion errors

// #region environment
// Environment is a deterministic rewrite state machine.
type Environment interface {
	// Reset restores the initial expression and zeroes the step counter.
	Reset() state.State
	// ValidActions lists the actions legal in s. An empty result is a dead end.
	ValidActions(s state.State) []state.Action
	// Step applies a to s and returns the next state, the reward and whether
	// the episode is over.
	Step(s state.State, a state.Action) (state.State, float64, bool)
	// StepCount is the number of Step calls since the last Reset.
	StepCount() int
	// MaxSteps is the per-episode step cap.
	MaxSteps() int
	// Target is the value the expression must reduce to.
	Target() int
	// Variant names the implementation.
	Variant() Variant
}

// #endregion environment

// #region variant
// Variant names an Environment implementation.
type Variant string

const (
	VariantRecursive Variant = "recursive"
	VariantGrouping  Variant = "grouping"
)

// #endregion variant

// #region rewards
const (
	rewardProgress   = 1.0
	rewardBaseSum    = 0.5
	rewardWrongMove  = -1.0
	rewardStuck      = -0.5
	rewardSolved     = 5.0
	rewardWrongFinal = -5.0
	penaltyTruncated = -3.0
)

// #endregion rewards
