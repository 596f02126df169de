package state

import "testing"

func TestStateIdentityIgnoresStep(t *testing.T) {
	a := New("(2 + 2) + 1", 1)
	b := New("(2 + 2) + 1", 7)
	if !a.Equal(b) {
		t.Fatal("states with equal text must be equal regardless of step")
	}
	if a.CanonicalKey() != b.CanonicalKey() {
		t.Fatalf("canonical keys differ: %q vs %q", a.CanonicalKey(), b.CanonicalKey())
	}
	if a.Equal(New("2 + 3", 1)) {
		t.Fatal("states with different text must differ")
	}
}

func TestTrajectoryClone(t *testing.T) {
	orig := Trajectory{
		{State: New("2 + 3", 0), Action: Decompose, Reward: 1},
		{State: New("(2 + 2) + 1", 1), Action: FurtherDecompose, Reward: 1},
	}
	cp := orig.Clone()
	cp[0].Reward = -9

	if orig[0].Reward != 1 {
		t.Fatal("clone must not alias the original")
	}
	if got := orig.TotalReward(); got != 2 {
		t.Fatalf("expected total reward 2, got %v", got)
	}
	if Trajectory(nil).Clone() != nil {
		t.Fatal("clone of nil should be nil")
	}
}
