package replay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmirDavoodi/MPEC/internal/agent"
	"github.com/AmirDavoodi/MPEC/internal/env"
	"github.com/AmirDavoodi/MPEC/internal/projection"
	"github.com/AmirDavoodi/MPEC/internal/state"
)

var intended = []state.Action{
	state.Decompose, state.FurtherDecompose, state.FurtherDecompose,
	state.ApplyBaseCase, state.Calculate, state.Finish,
}

func newEnv(t *testing.T, v env.Variant, expr string, target int) env.Environment {
	t.Helper()
	e, err := env.New(v, expr, target)
	require.NoError(t, err)
	return e
}

// #region fixture-tests
func TestFixtures(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			f, err := LoadFixture(path)
			require.NoError(t, err)

			results, err := f.Run()
			require.NoError(t, err)
			for _, diff := range f.Check(results) {
				t.Error(diff)
			}
		})
	}
}

func TestFixture_WrongMovesSummary(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "recursive_wrong_moves.json"))
	require.NoError(t, err)
	results, err := f.Run()
	require.NoError(t, err)

	require.Len(t, results, 5, "replay stops at done; the trailing action is never stepped")
	sum := Summarize(results, f.Target)
	assert.Equal(t, -5.0, sum.TotalReward)
	assert.Equal(t, 2, sum.InvalidActions, "apply_base_case and finish are not offered")
	assert.Equal(t, 3, sum.NegativeSteps)
	assert.True(t, sum.Done)
	assert.False(t, sum.Reached)
}

func TestFixture_CheckReportsMismatch(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "grouping_left.json"))
	require.NoError(t, err)
	f.ExpectedResults[1].Reward = 2
	f.ExpectedFinal = "10"

	results, err := f.Run()
	require.NoError(t, err)
	diffs := f.Check(results)
	assert.Len(t, diffs, 2)
}

func TestLoadFixture_Errors(t *testing.T) {
	_, err := LoadFixture(filepath.Join("testdata", "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadFixture(bad)
	assert.Error(t, err)

	malformed := filepath.Join(t.TempDir(), "malformed.json")
	require.NoError(t, os.WriteFile(malformed, []byte(`{"expression":"2 + x","target":2}`), 0o644))
	f, err := LoadFixture(malformed)
	require.NoError(t, err)
	assert.Equal(t, env.VariantRecursive, f.Variant)
	_, err = f.Run()
	assert.ErrorIs(t, err, env.ErrMalformedExpression)
}

func TestNewFixture_RoundTrip(t *testing.T) {
	e := newEnv(t, env.VariantGrouping, "1 + 2 + 3 + 4", 10)
	actions := []state.Action{state.GroupRight, state.Calculate, state.Finish}
	f := NewFixture("right grouping", e, "1 + 2 + 3 + 4", actions)

	path := filepath.Join(t.TempDir(), "f.json")
	data, err := json.MarshalIndent(f, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadFixture(path)
	require.NoError(t, err)
	results, err := loaded.Run()
	require.NoError(t, err)
	assert.Empty(t, loaded.Check(results))
	assert.Equal(t, "10", loaded.ExpectedFinal)
}

// #endregion fixture-tests

// #region replay-tests
func TestReplay_IntendedPathProjects(t *testing.T) {
	results := Replay(newEnv(t, env.VariantRecursive, "2 + 3", 5), intended)
	require.Len(t, results, 6)
	for _, r := range results {
		assert.True(t, r.Valid, "%s should be offered at %q", r.Action, r.State)
	}

	traj := Trajectory(results)
	assert.Equal(t, 10.0, traj.TotalReward())
	assert.Equal(t, "2 + 3", traj[0].State.Expression)
	assert.Equal(t, 0, traj[0].State.Step)

	rec := projection.ProjectRecord(traj)
	assert.Equal(t, 1, rec.StartCount())
	assert.Equal(t, 1, rec.EndCount())
	assert.Len(t, rec.Entities, 6)
}

func TestReplay_Empty(t *testing.T) {
	results := Replay(newEnv(t, env.VariantRecursive, "2 + 3", 5), nil)
	assert.Empty(t, results)
	sum := Summarize(results, 5)
	assert.Equal(t, ReplaySummary{}, sum)
}

func TestReplay_ResetsEnvironment(t *testing.T) {
	e := newEnv(t, env.VariantRecursive, "2 + 3", 5)
	first := Replay(e, intended)
	second := Replay(e, intended)
	assert.Equal(t, first, second)
}

func TestTeach_WarmStartsAgent(t *testing.T) {
	a := agent.New(agent.DefaultConfig(), nil)
	results := Teach(a, newEnv(t, env.VariantRecursive, "2 + 3", 5), intended)
	require.Len(t, results, 6)

	assert.Equal(t, 6, a.Table().Len())
	assert.Equal(t, 0.5, a.Table().Get(state.New("5", 0), state.Finish))
	assert.Greater(t, a.Table().Get(state.New("2 + 3", 0), state.Decompose), 0.0)
	assert.Len(t, a.Trajectory(), 6)
}

// #endregion replay-tests
