package logging

import "time"

// #region episode-entry
// EpisodeEntry is a single row in the episode_log table.
type EpisodeEntry struct {
	RunID       string    `json:"run_id"`
	Problem     string    `json:"problem"`
	Episode     int       `json:"episode"`
	TotalReward float64   `json:"total_reward"`
	Steps       int       `json:"steps"`
	Epsilon     float64   `json:"epsilon"`
	FinalState  string    `json:"final_state"`
	Improved    bool      `json:"improved"`
	Reached     bool      `json:"reached"`
	Decision    string    `json:"decision"` // "improved" | "solved" | "unsolved"
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// #endregion episode-entry

// #region level
// Level names accepted by ParseLevel.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Output formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// #endregion level
