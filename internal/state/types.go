package state

// #region state
// State is an immutable snapshot of the expression being rewritten.
// Identity is the expression text; Step is metadata recording when the
// state was produced.
type State struct {
	Expression string `json:"expression"`
	Step       int    `json:"step"`
}

// New returns the state for expr produced at step.
func New(expr string, step int) State {
	return State{Expression: expr, Step: step}
}

// CanonicalKey is the key used for every table lookup and graph node.
func (s State) CanonicalKey() string {
	return s.Expression
}

// Equal reports whether two states share the same canonical key.
func (s State) Equal(other State) bool {
	return s.CanonicalKey() == other.CanonicalKey()
}

func (s State) String() string {
	return s.Expression
}

// #endregion state

// #region action
// Action is a symbolic rewrite drawn from an environment's closed vocabulary.
type Action string

// Recursive-decomposition vocabulary.
const (
	Decompose        Action = "decompose"
	FurtherDecompose Action = "further_decompose"
	ApplyBaseCase    Action = "apply_base_case"
	Increment        Action = "increment"
)

// N-ary grouping vocabulary.
const (
	GroupLeft  Action = "group_left"
	GroupRight Action = "group_right"
)

// Shared by both environments.
const (
	Calculate Action = "calculate"
	Finish    Action = "finish"
)

// #endregion action

// #region trajectory
// Step is one (state, action, reward) record of an episode.
type Step struct {
	State  State   `json:"state"`
	Action Action  `json:"action"`
	Reward float64 `json:"reward"`
}

// Trajectory is the ordered step history of one episode.
type Trajectory []Step

// Clone returns an independent copy of t.
func (t Trajectory) Clone() Trajectory {
	if t == nil {
		return nil
	}
	out := make(Trajectory, len(t))
	copy(out, t)
	return out
}

// TotalReward sums the rewards of every step.
func (t Trajectory) TotalReward() float64 {
	var total float64
	for _, s := range t {
		total += s.Reward
	}
	return total
}

// #endregion trajectory
