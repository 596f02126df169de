package policy

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/AmirDavoodi/MPEC/internal/agent"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS policy_snapshots (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	problem       TEXT NOT NULL,
	variant       TEXT NOT NULL,
	epsilon       REAL NOT NULL,
	entries_json  TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	metrics_json  TEXT,
	FOREIGN KEY (parent_id) REFERENCES policy_snapshots(version_id)
);

CREATE TABLE IF NOT EXISTS active_policy (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES policy_snapshots(version_id)
);

CREATE TABLE IF NOT EXISTS episode_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	problem       TEXT NOT NULL,
	episode       INTEGER NOT NULL,
	total_reward  REAL NOT NULL,
	steps         INTEGER NOT NULL,
	epsilon       REAL NOT NULL,
	final_state   TEXT,
	improved      INTEGER NOT NULL DEFAULT 0,
	reached       INTEGER NOT NULL DEFAULT 0,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store keeps versioned Q-table snapshots in SQLite with a single active pointer.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations. All access goes
// through a single connection, so concurrent writers queue in-process
// instead of failing with SQLITE_BUSY.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already-migrated database.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB so the episode log and graph store can share it.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region capture
// Capture builds an uncommitted snapshot of a's table and exploration rate.
func Capture(a *agent.Agent, problem, variant string) Snapshot {
	return Snapshot{
		Problem: problem,
		Variant: variant,
		Epsilon: a.Epsilon(),
		Entries: a.Table().Entries(),
	}
}

// Restore loads snap into a.
func Restore(snap Snapshot, a *agent.Agent) {
	a.LoadEntries(snap.Entries)
	a.SetExploration(snap.Epsilon)
}

// #endregion capture

// #region commit
// CommitSnapshot inserts snap and makes it active in one transaction. Missing
// ids and timestamps are filled in; the stored snapshot is returned.
func (s *Store) CommitSnapshot(snap Snapshot) (Snapshot, error) {
	if snap.VersionID == "" {
		snap.VersionID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	if snap.Entries == nil {
		snap.Entries = []agent.Entry{}
	}
	entriesJSON, err := json.Marshal(snap.Entries)
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal entries: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO policy_snapshots (version_id, parent_id, problem, variant, epsilon, entries_json, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.VersionID, nullIfEmpty(snap.ParentID), snap.Problem, snap.Variant, snap.Epsilon,
		string(entriesJSON), snap.CreatedAt.UTC().Format(timeLayout), nullIfEmpty(snap.MetricsJSON),
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_policy (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		snap.VersionID,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("commit: %w", err)
	}
	return snap, nil
}

// #endregion commit

// #region get-active
// GetActive reads the active snapshot.
func (s *Store) GetActive() (Snapshot, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_policy WHERE id = 1`).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoActiveSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-active

// #region get-version
// GetVersion retrieves a snapshot by id.
func (s *Store) GetVersion(id string) (Snapshot, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, problem, variant, epsilon, entries_json, created_at, metrics_json
		 FROM policy_snapshots WHERE version_id = ?`, id,
	)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrVersionNotFound, id)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return snap, nil
}

// #endregion get-version

// #region rollback
// Rollback points the active pointer at an existing earlier version.
func (s *Store) Rollback(targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM policy_snapshots WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrVersionNotFound, targetVersionID)
	}

	_, err = s.db.Exec(
		`INSERT INTO active_policy (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		targetVersionID,
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent snapshots, newest first.
func (s *Store) ListVersions(limit int) ([]Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, problem, variant, epsilon, entries_json, created_at, metrics_json
		 FROM policy_snapshots ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// #endregion list-versions

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (Snapshot, error) {
	var snap Snapshot
	var parentID, metricsJSON sql.NullString
	var entriesJSON, createdStr string

	err := row.Scan(&snap.VersionID, &parentID, &snap.Problem, &snap.Variant,
		&snap.Epsilon, &entriesJSON, &createdStr, &metricsJSON)
	if err != nil {
		return Snapshot{}, err
	}
	snap.ParentID = parentID.String
	snap.MetricsJSON = metricsJSON.String
	if err := json.Unmarshal([]byte(entriesJSON), &snap.Entries); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal entries: %w", err)
	}
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return snap, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
