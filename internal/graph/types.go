package graph

import (
	"errors"
	"time"
)

// ErrGraphNotFound is returned when a stored graph id does not exist.
var ErrGraphNotFound = errors.New("graph not found")

// timeLayout is fixed-width so created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region kinds
const (
	NodeTypeStep    = "step"
	EdgeTypeGrounds = "grounds"
)

// #endregion kinds

// #region graph-types
// Node is a distinct expression text in a reasoning graph.
type Node struct {
	Name  string
	Label string
	Type  string
	Start bool
	End   bool
}

// Edge links a state to the state the named action produced from it.
type Edge struct {
	Source string
	Target string
	Type   string
	Name   string
}

// #endregion graph-types

// #region record-types
// Entity is a node in the triplet record. ID is assigned at export time.
type Entity struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Label string `json:"label" yaml:"label"`
	Type  string `json:"type" yaml:"type"`
	Start bool   `json:"start" yaml:"start"`
	End   bool   `json:"end" yaml:"end"`
}

// Relation is an edge in the triplet record, referencing entity IDs.
type Relation struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Type   string `json:"type" yaml:"type"`
	Name   string `json:"name" yaml:"name"`
}

// Record is the flat entity/relation serialization of a reasoning graph.
type Record struct {
	Entities  []Entity   `json:"entities" yaml:"entities"`
	Relations []Relation `json:"relations" yaml:"relations"`
}

// StartCount is the number of entities flagged as start.
func (r Record) StartCount() int {
	n := 0
	for _, e := range r.Entities {
		if e.Start {
			n++
		}
	}
	return n
}

// EndCount is the number of entities flagged as end.
func (r Record) EndCount() int {
	n := 0
	for _, e := range r.Entities {
		if e.End {
			n++
		}
	}
	return n
}

// #endregion record-types

// #region store-types
// GraphInfo describes one stored record.
type GraphInfo struct {
	GraphID       string    `json:"graph_id"`
	Problem       string    `json:"problem"`
	EntityCount   int       `json:"entity_count"`
	RelationCount int       `json:"relation_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// WalkResult holds the entities reached from the start entity, in visit order.
type WalkResult struct {
	IDs   []string `json:"ids"`
	Names []string `json:"names"`
	Depth []int    `json:"depth"`
}

// #endregion store-types
