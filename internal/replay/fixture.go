package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/AmirDavoodi/MPEC/internal/env"
	"github.com/AmirDavoodi/MPEC/internal/state"
)

// #region fixture-types
// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Variant         env.Variant             `json:"variant"`
	Expression      string                  `json:"expression"`
	Target          int                     `json:"target"`
	Actions         []state.Action          `json:"actions"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
	ExpectedFinal   string                  `json:"expected_final"`
}

// FixtureExpectedResult is the expected outcome of one scripted action.
type FixtureExpectedResult struct {
	Action    state.Action `json:"action"`
	NextState string       `json:"next_state"`
	Reward    float64      `json:"reward"`
	Done      bool         `json:"done"`
}

// #endregion fixture-types

// #region fixture-loader
// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.Variant == "" {
		f.Variant = env.VariantRecursive
	}
	return &f, nil
}

// Environment builds a fresh environment for the fixture's problem.
func (f *Fixture) Environment() (env.Environment, error) {
	e, err := env.New(f.Variant, f.Expression, f.Target)
	if err != nil {
		return nil, fmt.Errorf("fixture %q: %w", f.Description, err)
	}
	return e, nil
}

// Run builds the environment and replays the fixture's actions.
func (f *Fixture) Run() ([]ReplayResult, error) {
	e, err := f.Environment()
	if err != nil {
		return nil, err
	}
	return Replay(e, f.Actions), nil
}

// Check compares results against the expectations and returns one message
// per mismatch.
func (f *Fixture) Check(results []ReplayResult) []string {
	var diffs []string
	if len(f.ExpectedResults) > 0 && len(results) != len(f.ExpectedResults) {
		diffs = append(diffs, fmt.Sprintf("expected %d results, got %d", len(f.ExpectedResults), len(results)))
	}
	for i, want := range f.ExpectedResults {
		if i >= len(results) {
			break
		}
		got := results[i]
		if got.Action != want.Action {
			diffs = append(diffs, fmt.Sprintf("step %d: expected action=%s, got %s", i, want.Action, got.Action))
		}
		if got.NextState != want.NextState {
			diffs = append(diffs, fmt.Sprintf("step %d (%s): expected next_state=%q, got %q", i, want.Action, want.NextState, got.NextState))
		}
		if got.Reward != want.Reward {
			diffs = append(diffs, fmt.Sprintf("step %d (%s): expected reward=%v, got %v", i, want.Action, want.Reward, got.Reward))
		}
		if got.Done != want.Done {
			diffs = append(diffs, fmt.Sprintf("step %d (%s): expected done=%v, got %v", i, want.Action, want.Done, got.Done))
		}
	}
	if f.ExpectedFinal != "" {
		if final := Summarize(results, f.Target).FinalState; final != f.ExpectedFinal {
			diffs = append(diffs, fmt.Sprintf("expected final %q, got %q", f.ExpectedFinal, final))
		}
	}
	return diffs
}

// #endregion fixture-loader

// #region fixture-export
// NewFixture records a replay run as a fixture whose expectations are the
// observed results.
func NewFixture(description string, e env.Environment, expr string, actions []state.Action) Fixture {
	results := Replay(e, actions)
	f := Fixture{
		Description: description,
		Variant:     e.Variant(),
		Expression:  expr,
		Target:      e.Target(),
		Actions:     make([]state.Action, 0, len(results)),
	}
	for _, r := range results {
		f.Actions = append(f.Actions, r.Action)
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{
			Action:    r.Action,
			NextState: r.NextState,
			Reward:    r.Reward,
			Done:      r.Done,
		})
	}
	f.ExpectedFinal = Summarize(results, f.Target).FinalState
	return f
}

// #endregion fixture-export

func itoa(n int) string {
	return strconv.Itoa(n)
}
