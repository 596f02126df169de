package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmirDavoodi/MPEC/internal/agent"
	"github.com/AmirDavoodi/MPEC/internal/codec"
	"github.com/AmirDavoodi/MPEC/internal/replay"
	"github.com/AmirDavoodi/MPEC/internal/state"
	"github.com/AmirDavoodi/MPEC/internal/trainer"
)

// run executes the root command with args against dbPath and returns stdout.
func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--db", dbPath, "--log-level", "error"}, args...))
	err := root.Execute()
	return stdout.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "mathrl.db")
}

func trainTwoPlusThree(t *testing.T, db string) trainOutput {
	t.Helper()
	out, err := run(t, db, "--json", "--seed", "7", "train", "--expr", "2 + 3", "--target", "5", "--episodes", "300")
	require.NoError(t, err)
	var res trainOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	return res
}

func TestTrainCommitsPolicyAndGraph(t *testing.T) {
	db := tempDB(t)
	res := trainTwoPlusThree(t, db)

	require.Len(t, res.Results, 1)
	r := res.Results[0]
	assert.Equal(t, "2 + 3 = 5", r.Problem)
	require.NotNil(t, r.BestReward)
	assert.Equal(t, 10.0, *r.BestReward)
	assert.True(t, r.Reached)
	require.NotNil(t, r.Eval)
	assert.True(t, r.Eval.Passed)
	assert.NotEmpty(t, r.GraphID)
	assert.NotEmpty(t, res.VersionID)
	assert.NotEmpty(t, res.RunID)

	out, err := run(t, db, "--json", "inspect")
	require.NoError(t, err)
	var ins inspectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &ins))
	assert.Equal(t, res.VersionID, ins.Active)
	require.Len(t, ins.Versions, 1)
	assert.Greater(t, ins.Versions[0].Entries, 0)
	assert.Len(t, ins.Episodes, 10)
	require.Len(t, ins.Graphs, 1)
	assert.Equal(t, r.GraphID, ins.Graphs[0].GraphID)
}

func TestSolveUsesActivePolicy(t *testing.T) {
	db := tempDB(t)
	trained := trainTwoPlusThree(t, db)

	out, err := run(t, db, "--json", "solve", "--expr", "2 + 3", "--target", "5", "--greedy", "--save")
	require.NoError(t, err)
	var res solveOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	assert.Equal(t, trained.VersionID, res.VersionID)
	assert.True(t, res.Solution.Reached)
	assert.Equal(t, "5", res.Solution.FinalState)
	assert.NotEmpty(t, res.GraphID)
	assert.Equal(t, 1, res.Solution.KnowledgeGraph.StartCount())
}

func TestSolveWithoutPolicy(t *testing.T) {
	_, err := run(t, tempDB(t), "solve", "--expr", "2 + 3", "--target", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no trained policy")
}

func TestTrainRequiresProblem(t *testing.T) {
	_, err := run(t, tempDB(t), "train", "--expr", "2 + 3")
	require.Error(t, err)
}

func TestSecondTrainChainsParent(t *testing.T) {
	db := tempDB(t)
	first := trainTwoPlusThree(t, db)
	second := trainTwoPlusThree(t, db)
	require.NotEqual(t, first.VersionID, second.VersionID)

	out, err := run(t, db, "--json", "inspect", "--version", second.VersionID)
	require.NoError(t, err)
	var snap struct {
		ParentID string `json:"parent_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, first.VersionID, snap.ParentID)

	_, err = run(t, db, "inspect", "--rollback", first.VersionID)
	require.NoError(t, err)
	out, err = run(t, db, "--json", "inspect")
	require.NoError(t, err)
	var ins inspectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &ins))
	assert.Equal(t, first.VersionID, ins.Active)
}

func TestExportFormats(t *testing.T) {
	db := tempDB(t)
	trained := trainTwoPlusThree(t, db)
	graphID := trained.Results[0].GraphID

	for _, f := range []codec.Format{codec.FormatJSON, codec.FormatYAML, codec.FormatProtoJSON} {
		out, err := run(t, db, "export", "--format", string(f))
		require.NoError(t, err, f)
		rec, err := codec.Decode([]byte(out), f)
		require.NoError(t, err, f)
		assert.Equal(t, 1, rec.StartCount(), f)
		assert.Equal(t, 1, rec.EndCount(), f)
	}

	out, err := run(t, db, "--json", "export", "--graph-id", graphID, "--walk", "10")
	require.NoError(t, err)
	var walk struct {
		Names []string `json:"names"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &walk))
	require.NotEmpty(t, walk.Names)
	assert.Equal(t, "2 + 3", walk.Names[0])
}

func TestExportNoGraphs(t *testing.T) {
	_, err := run(t, tempDB(t), "export")
	require.Error(t, err)
}

var fixtureDir = filepath.Join("..", "..", "internal", "replay", "testdata")

func TestWarmStartSeedsTable(t *testing.T) {
	fixtures, err := loadFixtures([]string{filepath.Join(fixtureDir, "recursive_intended.json")})
	require.NoError(t, err)

	a := agent.New(agent.DefaultConfig(), trainer.NewRand(1))
	require.NoError(t, warmStart(a, fixtures))

	assert.Greater(t, a.Table().Get(state.New("(2 + 0) + 1 + 1 + 1", 3), state.ApplyBaseCase), 0.0)
	assert.Greater(t, a.Table().Get(state.New("5", 5), state.Finish), 0.0)
	assert.Empty(t, a.Trajectory())
}

func TestTrainWarmStart(t *testing.T) {
	db := tempDB(t)
	out, err := run(t, db, "--json", "train", "--expr", "2 + 3", "--target", "5", "--episodes", "50",
		"--warm-start", filepath.Join(fixtureDir, "recursive_intended.json"), "--no-commit")
	require.NoError(t, err)
	var res trainOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Results, 1)
	assert.Empty(t, res.VersionID)

	_, err = run(t, db, "train", "--expr", "2 + 3", "--target", "5", "--warm-start", "missing.json")
	require.Error(t, err)
}

func TestReplayFixtures(t *testing.T) {
	fixtures := fixtureDir
	out, err := run(t, tempDB(t), "replay",
		"--fixture", filepath.Join(fixtures, "recursive_intended.json"),
		"--fixture", filepath.Join(fixtures, "grouping_left.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")
	assert.NotContains(t, out, "FAIL")
}

func TestReplayRecordRoundTrip(t *testing.T) {
	db := tempDB(t)
	path := filepath.Join(t.TempDir(), "fx.json")
	_, err := run(t, db, "replay", "--record", path, "--expr", "2 + 1", "--target", "3",
		"--actions", "decompose, apply_base_case,calculate,finish")
	require.NoError(t, err)

	fx, err := replay.LoadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, "3", fx.ExpectedFinal)
	assert.Len(t, fx.ExpectedResults, 4)

	_, err = run(t, db, "replay", "--fixture", path)
	require.NoError(t, err)

	fx.ExpectedFinal = "4"
	data, err := json.Marshal(fx)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	_, err = run(t, db, "replay", "--fixture", path)
	require.Error(t, err)
}
