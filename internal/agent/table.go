package agent

import (
	"sort"

	"github.com/AmirDavoodi/MPEC/internal/state"
)

type tableKey struct {
	state  string
	action state.Action
}

// #region table
// QTable maps (state key, action) to a value. Reads of absent keys return 0;
// writes insert or overwrite. Entries are never removed.
type QTable struct {
	values map[tableKey]float64
}

// NewQTable returns an empty table.
func NewQTable() *QTable {
	return &QTable{values: make(map[tableKey]float64)}
}

// Get returns Q(s, a), or 0 if the pair was never written.
func (t *QTable) Get(s state.State, a state.Action) float64 {
	return t.values[tableKey{s.CanonicalKey(), a}]
}

// Set writes Q(s, a).
func (t *QTable) Set(s state.State, a state.Action, v float64) {
	t.values[tableKey{s.CanonicalKey(), a}] = v
}

// Max returns the largest value among actions in s, or 0 when actions is empty.
func (t *QTable) Max(s state.State, actions []state.Action) float64 {
	if len(actions) == 0 {
		return 0
	}
	best := t.Get(s, actions[0])
	for _, a := range actions[1:] {
		if v := t.Get(s, a); v > best {
			best = v
		}
	}
	return best
}

// Len is the number of stored pairs.
func (t *QTable) Len() int {
	return len(t.values)
}

// Entries exports the table sorted by state then action.
func (t *QTable) Entries() []Entry {
	out := make([]Entry, 0, len(t.values))
	for k, v := range t.values {
		out = append(out, Entry{State: k.state, Action: k.action, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// Load writes every entry into the table.
func (t *QTable) Load(entries []Entry) {
	for _, e := range entries {
		t.values[tableKey{e.State, e.Action}] = e.Value
	}
}

// #endregion table
