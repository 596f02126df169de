package graph

import "strconv"

// #region graph
// Graph is a directed reasoning graph keyed by expression text. Nodes and
// edges keep insertion order so exports are reproducible.
type Graph struct {
	nodes []Node
	index map[string]int
	edges []Edge
	seen  map[Edge]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		index: make(map[string]int),
		seen:  make(map[Edge]struct{}),
	}
}

// AddNode adds a step node for name. If the node already exists its flags
// are OR-ed with start and end and false is returned.
func (g *Graph) AddNode(name string, start, end bool) bool {
	if i, ok := g.index[name]; ok {
		g.nodes[i].Start = g.nodes[i].Start || start
		g.nodes[i].End = g.nodes[i].End || end
		return false
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, Node{
		Name:  name,
		Label: name,
		Type:  NodeTypeStep,
		Start: start,
		End:   end,
	})
	return true
}

// AddEdge adds a grounds edge labeled name. Identical edges are stored once;
// edges between the same nodes with different labels are kept side by side.
func (g *Graph) AddEdge(source, target, name string) bool {
	e := Edge{Source: source, Target: target, Type: EdgeTypeGrounds, Name: name}
	if _, dup := g.seen[e]; dup {
		return false
	}
	g.seen[e] = struct{}{}
	g.edges = append(g.edges, e)
	return true
}

// HasNode reports whether name is a node.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Node returns the node for name.
func (g *Graph) Node(name string) (Node, bool) {
	i, ok := g.index[name]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// #endregion graph

// #region export
// Export flattens the graph into a Record. Entity ids are positional and
// assigned fresh on every call.
func (g *Graph) Export() Record {
	rec := Record{
		Entities:  make([]Entity, 0, len(g.nodes)),
		Relations: make([]Relation, 0, len(g.edges)),
	}
	ids := make(map[string]string, len(g.nodes))
	for i, n := range g.nodes {
		id := strconv.Itoa(i)
		ids[n.Name] = id
		rec.Entities = append(rec.Entities, Entity{
			ID:    id,
			Name:  n.Name,
			Label: n.Label,
			Type:  n.Type,
			Start: n.Start,
			End:   n.End,
		})
	}
	for _, e := range g.edges {
		rec.Relations = append(rec.Relations, Relation{
			Source: ids[e.Source],
			Target: ids[e.Target],
			Type:   e.Type,
			Name:   e.Name,
		})
	}
	return rec
}

// #endregion export
