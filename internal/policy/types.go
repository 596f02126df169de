package policy

import (
	"errors"
	"time"

	"github.com/AmirDavoodi/MPEC/internal/agent"
)

var (
	// ErrNoActiveSnapshot is returned when nothing has been committed yet.
	ErrNoActiveSnapshot = errors.New("no active snapshot")
	// ErrVersionNotFound is returned for an unknown version id.
	ErrVersionNotFound = errors.New("version not found")
)

// timeLayout is fixed-width so created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region snapshot
// Snapshot is one committed version of a learned Q-table.
type Snapshot struct {
	VersionID   string        `json:"version_id"`
	ParentID    string        `json:"parent_id,omitempty"`
	Problem     string        `json:"problem"`
	Variant     string        `json:"variant"`
	Epsilon     float64       `json:"epsilon"`
	Entries     []agent.Entry `json:"entries"`
	CreatedAt   time.Time     `json:"created_at"`
	MetricsJSON string        `json:"metrics_json,omitempty"`
}

// #endregion snapshot
