package update

import (
	"math"
	"testing"
)

func TestUpdateNoOp(t *testing.T) {
	ctx := UpdateContext{StateKey: "2 + 3", Action: "decompose"}

	result := Update(0, ctx, DefaultUpdateConfig())

	if result.Decision.Action != "no_op" {
		t.Fatalf("expected no_op, got %s", result.Decision.Action)
	}
	if result.NewValue != 0 {
		t.Fatalf("expected value to stay 0, got %f", result.NewValue)
	}
	if result.Metrics.Delta != 0 {
		t.Fatalf("expected zero delta, got %f", result.Metrics.Delta)
	}
}

func TestUpdateMovesTowardZero(t *testing.T) {
	ctx := UpdateContext{StateKey: "s", Action: "a"}
	cfg := DefaultUpdateConfig()

	for _, start := range []float64{2.5, -1.25, 1e-6, -300} {
		result := Update(start, ctx, cfg)
		if math.Abs(result.NewValue) >= math.Abs(start) {
			t.Fatalf("start %f: |%f| not strictly closer to 0", start, result.NewValue)
		}
		if math.Signbit(result.NewValue) != math.Signbit(start) {
			t.Fatalf("start %f: overshot zero to %f", start, result.NewValue)
		}
		if result.Decision.Action != "commit" {
			t.Fatalf("start %f: expected commit, got %s", start, result.Decision.Action)
		}
	}
}

func TestUpdateRule(t *testing.T) {
	ctx := UpdateContext{StateKey: "s", Action: "a", Reward: 1.0, MaxNextQ: 2.0}
	cfg := UpdateConfig{LearningRate: 0.5, DiscountFactor: 0.9}

	result := Update(1.0, ctx, cfg)

	// 1 + 0.5 * (1 + 0.9*2 - 1) = 1.9
	if math.Abs(result.NewValue-1.9) > 1e-12 {
		t.Fatalf("expected 1.9, got %f", result.NewValue)
	}
	if math.Abs(result.Metrics.Target-2.8) > 1e-12 {
		t.Fatalf("expected target 2.8, got %f", result.Metrics.Target)
	}
	if math.Abs(result.Metrics.TDError-1.8) > 1e-12 {
		t.Fatalf("expected td error 1.8, got %f", result.Metrics.TDError)
	}
}

func TestUpdateDeterministic(t *testing.T) {
	ctx := UpdateContext{StateKey: "s", Action: "a", Reward: -0.5, MaxNextQ: 0.3}
	cfg := DefaultUpdateConfig()

	r1 := Update(0.7, ctx, cfg)
	r2 := Update(0.7, ctx, cfg)
	if r1.NewValue != r2.NewValue {
		t.Fatalf("non-deterministic: %f vs %f", r1.NewValue, r2.NewValue)
	}
}
