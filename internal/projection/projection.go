package projection

import (
	"github.com/AmirDavoodi/MPEC/internal/graph"
	"github.com/AmirDavoodi/MPEC/internal/state"
)

// #region project

// Project turns a trajectory into a reasoning graph. Steps with a negative
// reward are dropped as wrong moves. Each surviving state becomes a node
// keyed by its expression text and is linked from the previous surviving
// state by an edge named after the action that led to it, including a
// self-loop when that action left the text unchanged. Start and end
// flags refer to the first and last steps of the unfiltered trajectory.
func Project(traj state.Trajectory) *graph.Graph {
	g := graph.New()
	last := len(traj) - 1

	var prev *state.Step
	for i := range traj {
		step := traj[i]
		if step.Reward < 0 {
			continue
		}

		name := step.State.CanonicalKey()
		g.AddNode(name, i == 0, i == last)

		if prev != nil {
			g.AddEdge(prev.State.CanonicalKey(), name, string(prev.Action))
		}
		prev = &traj[i]
	}
	return g
}

// ProjectRecord projects traj and exports the result.
func ProjectRecord(traj state.Trajectory) graph.Record {
	return Project(traj).Export()
}

// #endregion project
