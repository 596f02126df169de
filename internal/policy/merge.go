package policy

import (
	"sort"

	"github.com/AmirDavoodi/MPEC/internal/agent"
)

type mergeKey struct {
	state  string
	action string
}

// Merge reduces tables learned by independent agents into one. Pairs present
// in several tables take the mean of their values. The result is sorted by
// state then action.
func Merge(tables ...[]agent.Entry) []agent.Entry {
	sums := make(map[mergeKey]float64)
	counts := make(map[mergeKey]int)
	for _, table := range tables {
		for _, e := range table {
			k := mergeKey{e.State, string(e.Action)}
			sums[k] += e.Value
			counts[k]++
		}
	}

	out := make([]agent.Entry, 0, len(sums))
	for _, table := range tables {
		for _, e := range table {
			k := mergeKey{e.State, string(e.Action)}
			n, ok := counts[k]
			if !ok {
				continue
			}
			out = append(out, agent.Entry{State: e.State, Action: e.Action, Value: sums[k] / float64(n)})
			delete(counts, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].Action < out[j].Action
	})
	return out
}
