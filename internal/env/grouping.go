package env

import (
	"fmt"
	"strings"

	"github.com/AmirDavoodi/MPEC/internal/arith"
	"github.com/AmirDavoodi/MPEC/internal/state"
)

// GroupingMaxSteps is the step cap of a GroupingEnv episode.
const GroupingMaxSteps = 20

// #region grouping-env
// GroupingEnv reduces "n1 + n2 + ... + nk" by grouping a pair of terms in
// parentheses and folding the sum.
type GroupingEnv struct {
	initial   state.State
	target    int
	maxSteps  int
	stepCount int
}

// NewGroupingEnv parses expr as two or more integer terms.
func NewGroupingEnv(expr string, target int) (*GroupingEnv, error) {
	expr = strings.TrimSpace(expr)
	terms, err := arith.Terms(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedExpression, expr, err)
	}
	if len(terms) < 2 {
		return nil, fmt.Errorf("%w: %q: want at least 2 terms", ErrMalformedExpression, expr)
	}
	return &GroupingEnv{
		initial:  state.New(expr, 0),
		target:   target,
		maxSteps: GroupingMaxSteps,
	}, nil
}

func (e *GroupingEnv) Reset() state.State {
	e.stepCount = 0
	return e.initial
}

func (e *GroupingEnv) StepCount() int   { return e.stepCount }
func (e *GroupingEnv) MaxSteps() int    { return e.maxSteps }
func (e *GroupingEnv) Target() int      { return e.target }
func (e *GroupingEnv) Variant() Variant { return VariantGrouping }

// #endregion grouping-env

// #region valid-actions
func (e *GroupingEnv) ValidActions(s state.State) []state.Action {
	expr := s.Expression
	if !strings.Contains(expr, "(") {
		if strings.Contains(expr, "+") {
			return []state.Action{state.GroupLeft, state.GroupRight}
		}
		if isTarget(expr, e.target) {
			return []state.Action{state.Finish}
		}
		return nil
	}
	if hasPairGroup(expr) {
		return []state.Action{state.Calculate}
	}
	return []state.Action{state.GroupLeft, state.GroupRight}
}

// hasPairGroup reports whether some parenthesized group holds exactly one '+'.
func hasPairGroup(expr string) bool {
	for i := 0; i < len(expr); i++ {
		if expr[i] != '(' {
			continue
		}
		depth := 0
		for j := i; j < len(expr); j++ {
			switch expr[j] {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 {
				if strings.Count(expr[i+1:j], "+") == 1 {
					return true
				}
				break
			}
		}
	}
	return false
}

// #endregion valid-actions

// #region step
func (e *GroupingEnv) Step(s state.State, a state.Action) (state.State, float64, bool) {
	e.stepCount++
	expr := s.Expression
	next := expr
	var reward float64
	done := false

	switch a {
	case state.GroupLeft:
		parts := trimAll(strings.Split(expr, "+"))
		if len(parts) >= 2 {
			next = "(" + parts[0] + " + " + parts[1] + ")"
			if len(parts) > 2 {
				next += " + " + strings.Join(parts[2:], " + ")
			}
			reward = rewardProgress
		} else {
			reward = rewardWrongMove
		}

	case state.GroupRight:
		parts := trimAll(strings.Split(expr, "+"))
		if len(parts) >= 2 {
			last := len(parts) - 1
			next = strings.Join(parts[:last], " + ") + " + (" + parts[last] + ")"
			reward = rewardProgress
		} else {
			reward = rewardWrongMove
		}

	case state.Calculate:
		if v, err := arith.Eval(stripParens(expr)); err == nil {
			next = itoa(v)
			reward = rewardProgress
		} else {
			reward = rewardWrongMove
		}

	case state.Finish:
		done = true
		if isTarget(expr, e.target) {
			reward = rewardSolved
		} else {
			reward = rewardWrongFinal
		}

	default:
		reward = rewardWrongMove
	}

	if e.stepCount >= e.maxSteps {
		done = true
		if !isTarget(next, e.target) {
			reward += penaltyTruncated
		}
	}

	return state.New(next, e.stepCount), reward, done
}

// #endregion step
