package update

import "fmt"

// #region update-function
// Update is a pure function computing the one-step Q-learning value for a
// (state, action) pair currently valued at current:
//
//	Q(s,a) + alpha * (r + gamma * max Q(s',a') - Q(s,a))
func Update(current float64, ctx UpdateContext, config UpdateConfig) UpdateResult {
	target := ctx.Reward + config.DiscountFactor*ctx.MaxNextQ
	tdError := target - current
	newValue := current + config.LearningRate*tdError
	delta := newValue - current

	decision := Decision{Action: "no_op", Reason: "no value change"}
	if delta != 0 {
		decision = Decision{
			Action: "commit",
			Reason: fmt.Sprintf("%s/%s: %.6f -> %.6f", ctx.StateKey, ctx.Action, current, newValue),
		}
	}

	return UpdateResult{
		NewValue: newValue,
		Decision: decision,
		Metrics: Metrics{
			Target:  target,
			TDError: tdError,
			Delta:   delta,
		},
	}
}

// #endregion update-function
