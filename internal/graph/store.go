package graph

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS reasoning_graphs (
    graph_id    TEXT PRIMARY KEY,
    problem     TEXT NOT NULL,
    created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS reasoning_entities (
    graph_id    TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    position    INTEGER NOT NULL,
    name        TEXT NOT NULL,
    label       TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    is_start    INTEGER NOT NULL DEFAULT 0,
    is_end      INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (graph_id, entity_id),
    FOREIGN KEY (graph_id) REFERENCES reasoning_graphs(graph_id)
);
CREATE TABLE IF NOT EXISTS reasoning_relations (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    graph_id      TEXT NOT NULL,
    source_id     TEXT NOT NULL,
    target_id     TEXT NOT NULL,
    relation_type TEXT NOT NULL,
    name          TEXT NOT NULL,
    UNIQUE(graph_id, source_id, target_id, relation_type, name),
    FOREIGN KEY (graph_id) REFERENCES reasoning_graphs(graph_id)
);
CREATE INDEX IF NOT EXISTS idx_relations_source ON reasoning_relations(graph_id, source_id);
`

// #endregion schema

// #region store
// Store persists triplet records in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates tables and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("graph schema: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion store

// #region save
// SaveRecord stores rec under a new graph id and returns it.
func (s *Store) SaveRecord(problem string, rec Record) (string, error) {
	graphID := uuid.New().String()
	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO reasoning_graphs (graph_id, problem, created_at) VALUES (?, ?, ?)`,
		graphID, problem, now,
	); err != nil {
		return "", fmt.Errorf("insert graph: %w", err)
	}

	for i, e := range rec.Entities {
		if _, err := tx.Exec(
			`INSERT INTO reasoning_entities (graph_id, entity_id, position, name, label, entity_type, is_start, is_end)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			graphID, e.ID, i, e.Name, e.Label, e.Type, boolInt(e.Start), boolInt(e.End),
		); err != nil {
			return "", fmt.Errorf("insert entity %s: %w", e.ID, err)
		}
	}

	for _, r := range rec.Relations {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO reasoning_relations (graph_id, source_id, target_id, relation_type, name)
			 VALUES (?, ?, ?, ?, ?)`,
			graphID, r.Source, r.Target, r.Type, r.Name,
		); err != nil {
			return "", fmt.Errorf("insert relation %s->%s: %w", r.Source, r.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return graphID, nil
}

// #endregion save

// #region load
// LoadRecord reads back the record stored under graphID.
func (s *Store) LoadRecord(graphID string) (Record, error) {
	var exists int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM reasoning_graphs WHERE graph_id = ?`, graphID,
	).Scan(&exists); err != nil {
		return Record{}, fmt.Errorf("check graph: %w", err)
	}
	if exists == 0 {
		return Record{}, fmt.Errorf("%w: %s", ErrGraphNotFound, graphID)
	}

	rec := Record{Entities: []Entity{}, Relations: []Relation{}}

	rows, err := s.db.Query(
		`SELECT entity_id, name, label, entity_type, is_start, is_end
		 FROM reasoning_entities WHERE graph_id = ? ORDER BY position`, graphID,
	)
	if err != nil {
		return Record{}, fmt.Errorf("query entities: %w", err)
	}
	for rows.Next() {
		var e Entity
		var start, end int
		if err := rows.Scan(&e.ID, &e.Name, &e.Label, &e.Type, &start, &end); err != nil {
			rows.Close()
			return Record{}, fmt.Errorf("scan entity: %w", err)
		}
		e.Start = start != 0
		e.End = end != 0
		rec.Entities = append(rec.Entities, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Record{}, err
	}

	rels, err := s.relations(`WHERE graph_id = ? ORDER BY id`, graphID)
	if err != nil {
		return Record{}, err
	}
	rec.Relations = append(rec.Relations, rels...)
	return rec, nil
}

// #endregion load

// #region list
// ListGraphs returns the most recently stored graphs.
func (s *Store) ListGraphs(limit int) ([]GraphInfo, error) {
	rows, err := s.db.Query(
		`SELECT g.graph_id, g.problem, g.created_at,
		        (SELECT COUNT(*) FROM reasoning_entities e WHERE e.graph_id = g.graph_id),
		        (SELECT COUNT(*) FROM reasoning_relations r WHERE r.graph_id = g.graph_id)
		 FROM reasoning_graphs g ORDER BY g.created_at DESC, g.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list graphs: %w", err)
	}
	defer rows.Close()

	var infos []GraphInfo
	for rows.Next() {
		var gi GraphInfo
		var createdAt string
		if err := rows.Scan(&gi.GraphID, &gi.Problem, &createdAt, &gi.EntityCount, &gi.RelationCount); err != nil {
			return nil, fmt.Errorf("scan graph: %w", err)
		}
		gi.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		infos = append(infos, gi)
	}
	return infos, rows.Err()
}

// #endregion list

// #region get-neighbors
// GetNeighbors returns the relations leaving entityID in graphID.
func (s *Store) GetNeighbors(graphID, entityID string) ([]Relation, error) {
	return s.relations(`WHERE graph_id = ? AND source_id = ? ORDER BY id`, graphID, entityID)
}

func (s *Store) relations(where string, args ...any) ([]Relation, error) {
	rows, err := s.db.Query(
		`SELECT source_id, target_id, relation_type, name FROM reasoning_relations `+where, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	var rels []Relation
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.Source, &r.Target, &r.Type, &r.Name); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// #endregion get-neighbors

// #region walk
// Walk performs a BFS from the start entity of graphID following relations,
// up to maxDepth hops. A graph with no start entity yields an empty result.
func (s *Store) Walk(graphID string, maxDepth int) (WalkResult, error) {
	if maxDepth <= 0 {
		maxDepth = 32
	}

	var startID, startName string
	err := s.db.QueryRow(
		`SELECT entity_id, name FROM reasoning_entities
		 WHERE graph_id = ? AND is_start = 1 ORDER BY position LIMIT 1`, graphID,
	).Scan(&startID, &startName)
	if errors.Is(err, sql.ErrNoRows) {
		return WalkResult{}, nil
	}
	if err != nil {
		return WalkResult{}, fmt.Errorf("walk start: %w", err)
	}

	names, err := s.entityNames(graphID)
	if err != nil {
		return WalkResult{}, err
	}

	result := WalkResult{IDs: []string{startID}, Names: []string{startName}, Depth: []int{0}}
	visited := map[string]bool{startID: true}

	type queueItem struct {
		id    string
		depth int
	}
	queue := []queueItem{{startID, 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= maxDepth {
			continue
		}

		neighbors, err := s.GetNeighbors(graphID, current.id)
		if err != nil {
			return result, fmt.Errorf("walk neighbors: %w", err)
		}
		for _, rel := range neighbors {
			if visited[rel.Target] {
				continue
			}
			visited[rel.Target] = true
			result.IDs = append(result.IDs, rel.Target)
			result.Names = append(result.Names, names[rel.Target])
			result.Depth = append(result.Depth, current.depth+1)
			queue = append(queue, queueItem{rel.Target, current.depth + 1})
		}
	}
	return result, nil
}

func (s *Store) entityNames(graphID string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT entity_id, name FROM reasoning_entities WHERE graph_id = ?`, graphID)
	if err != nil {
		return nil, fmt.Errorf("query entity names: %w", err)
	}
	defer rows.Close()
	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan entity name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// #endregion walk

// #region helpers
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
