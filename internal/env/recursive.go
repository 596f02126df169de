package env

import (
	"fmt"
	"strings"

	"github.com/AmirDavoodi/MPEC/internal/arith"
	"github.com/AmirDavoodi/MPEC/internal/state"
)

// RecursiveMaxSteps is the step cap of a RecursiveEnv episode.
const RecursiveMaxSteps = 10

// #region recursive-env
// RecursiveEnv reduces "a + b" by peeling increments off b until the base
// case (a + 0) is reached, then folding the increments back in.
type RecursiveEnv struct {
	initial   state.State
	target    int
	a, b      int
	maxSteps  int
	stepCount int
}

// NewRecursiveEnv parses expr as exactly two integer terms with b >= 0.
func NewRecursiveEnv(expr string, target int) (*RecursiveEnv, error) {
	expr = strings.TrimSpace(expr)
	terms, err := arith.Terms(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedExpression, expr, err)
	}
	if len(terms) != 2 {
		return nil, fmt.Errorf("%w: %q: want 2 terms, got %d", ErrMalformedExpression, expr, len(terms))
	}
	if terms[1] < 0 {
		return nil, fmt.Errorf("%w: %q: second operand must be >= 0", ErrMalformedExpression, expr)
	}
	return &RecursiveEnv{
		initial:  state.New(expr, 0),
		target:   target,
		a:        terms[0],
		b:        terms[1],
		maxSteps: RecursiveMaxSteps,
	}, nil
}

func (e *RecursiveEnv) Reset() state.State {
	e.stepCount = 0
	return e.initial
}

func (e *RecursiveEnv) StepCount() int   { return e.stepCount }
func (e *RecursiveEnv) MaxSteps() int    { return e.maxSteps }
func (e *RecursiveEnv) Target() int      { return e.target }
func (e *RecursiveEnv) Variant() Variant { return VariantRecursive }

// #endregion recursive-env

// #region valid-actions
func (e *RecursiveEnv) ValidActions(s state.State) []state.Action {
	expr := s.Expression
	hasPlus := strings.Contains(expr, "+")
	hasParen := strings.Contains(expr, "(")

	switch {
	case hasPlus && !hasParen && s.Step == 0:
		return []state.Action{state.Decompose}
	case hasPlus && hasParen:
		if atBaseCase(expr) {
			return []state.Action{state.ApplyBaseCase}
		}
		return []state.Action{state.FurtherDecompose, state.Increment}
	case hasPlus:
		return []state.Action{state.Calculate}
	}

	if isTarget(expr, e.target) {
		return []state.Action{state.Finish}
	}
	return nil
}

// atBaseCase reports whether the innermost group is exactly (k + 0).
func atBaseCase(expr string) bool {
	start, end, ok := innermostGroup(expr)
	if !ok {
		return false
	}
	group := expr[start : end+1]
	if strings.Count(group, "+") != 1 {
		return false
	}
	_, b, err := splitOperands(group)
	return err == nil && b == 0
}

// #endregion valid-actions

// #region step
func (e *RecursiveEnv) Step(s state.State, a state.Action) (state.State, float64, bool) {
	e.stepCount++
	expr := s.Expression
	next := expr
	var reward float64
	done := false

	switch a {
	case state.Decompose:
		x, y := e.operands(expr)
		if y > 0 {
			next = decomposed(x, y)
			reward = rewardProgress
		} else {
			next = itoa(x)
			reward = rewardBaseSum
		}

	case state.FurtherDecompose:
		start, end, ok := innermostGroup(expr)
		if !ok {
			reward = rewardWrongMove
			break
		}
		x, y := e.operands(expr[start : end+1])
		if y > 0 {
			next = expr[:start] + decomposed(x, y) + expr[end+1:]
			reward = rewardProgress
		} else {
			reward = rewardStuck
		}

	case state.ApplyBaseCase:
		base := fmt.Sprintf("(%d + 0)", e.a)
		start, end, ok := innermostGroup(expr)
		if ok && expr[start:end+1] == base {
			next = expr[:start] + itoa(e.a) + expr[end+1:]
			reward = rewardProgress
		} else {
			reward = rewardWrongMove
		}

	case state.Increment:
		if v, err := incrementFold(expr); err == nil {
			next = itoa(v)
			reward = rewardProgress
		} else {
			reward = rewardWrongMove
		}

	case state.Calculate:
		if v, err := arith.Eval(expr); err == nil {
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

// operands parses "a + b" out of expr, falling back to the operands the
// environment was constructed with.
func (e *RecursiveEnv) operands(expr string) (int, int) {
	a, b, err := splitOperands(expr)
	if err != nil {
		return e.a, e.b
	}
	return a, b
}

func decomposed(a, b int) string {
	return fmt.Sprintf("(%d + %d) + 1", a, b-1)
}

// incrementFold folds an expression of the shape "x + y", optionally wrapped
// in one pair of parentheses, into the sum of its two operands.
func incrementFold(expr string) (int, error) {
	parts := strings.Split(expr, "+")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: increment needs exactly two operands in %q", arith.ErrSyntax, expr)
	}
	left := strings.TrimSpace(parts[0])
	right := strings.TrimSpace(parts[1])
	if strings.HasPrefix(left, "(") && strings.HasSuffix(right, ")") {
		left = left[1:]
		right = right[:len(right)-1]
	}
	x, err := arith.Eval(left)
	if err != nil {
		return 0, err
	}
	y, err := arith.Eval(right)
	if err != nil {
		return 0, err
	}
	return arith.Add(x, y)
}

// #endregion step
