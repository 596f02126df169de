package update

// #region update-context
// UpdateContext carries one observed transition into the pure update function.
type UpdateContext struct {
	StateKey string
	Action   string
	Reward   float64
	// MaxNextQ is max over the next state's valid actions, or 0 when the
	// next state has none.
	MaxNextQ float64
}

// #endregion update-context

// #region decision
// Decision records what the update function decided.
type Decision struct {
	Action string // "commit" | "no_op"
	Reason string
}

// #endregion decision

// #region metrics
// Metrics captures telemetry from one update.
type Metrics struct {
	Target  float64 // r + gamma * maxNextQ
	TDError float64 // Target - current
	Delta   float64 // NewValue - current
}

// #endregion metrics

// #region update-config
// UpdateConfig holds the step size and discount of the update rule.
type UpdateConfig struct {
	LearningRate   float64 // alpha (default 0.1)
	DiscountFactor float64 // gamma (default 0.9)
}

// DefaultUpdateConfig returns the standard alpha/gamma pair.
func DefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{
		LearningRate:   0.1,
		DiscountFactor: 0.9,
	}
}

// #endregion update-config

// #region update-result
// UpdateResult bundles everything returned by Update().
type UpdateResult struct {
	NewValue float64
	Decision Decision
	Metrics  Metrics
}

// #endregion update-result
