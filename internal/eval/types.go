package eval

// #region eval-config
// EvalConfig holds thresholds for judging a solved trajectory.
type EvalConfig struct {
	RequireTarget    bool // fail unless the trajectory ends on the target value
	MaxNegativeSteps int  // fail if more wrong moves than this were taken
}

// DefaultEvalConfig requires the target and tolerates two wrong moves.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		RequireTarget:    true,
		MaxNegativeSteps: 2,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of Run.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// Metric returns the named metric.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion eval-result
