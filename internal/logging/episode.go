package logging

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AmirDavoodi/MPEC/internal/trainer"
)

// #region log-episode
// LogEpisode writes one row to the episode_log table.
func LogEpisode(db *sql.DB, entry EpisodeEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO episode_log (run_id, problem, episode, total_reward, steps, epsilon, final_state, improved, reached, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Problem,
		entry.Episode,
		entry.TotalReward,
		entry.Steps,
		entry.Epsilon,
		nullIfEmpty(entry.FinalState),
		entry.Improved,
		entry.Reached,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log episode: %w", err)
	}
	return nil
}

// RecentEpisodes returns up to limit rows, newest first. An empty runID
// matches every run.
func RecentEpisodes(db *sql.DB, runID string, limit int) ([]EpisodeEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, problem, episode, total_reward, steps, epsilon, final_state, improved, reached, decision, reason, created_at
		 FROM episode_log WHERE (? = '' OR run_id = ?) ORDER BY id DESC LIMIT ?`,
		runID, runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeEntry
	for rows.Next() {
		var e EpisodeEntry
		var finalState, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Problem, &e.Episode, &e.TotalReward, &e.Steps, &e.Epsilon,
			&finalState, &e.Improved, &e.Reached, &e.Decision, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		e.FinalState = finalState.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion log-episode

// #region sink
// EpisodeSink persists every finished episode. Write failures are logged
// and do not stop training. It is safe to share between batch workers.
type EpisodeSink struct {
	DB     *sql.DB
	RunID  string
	Logger *slog.Logger

	mu sync.Mutex
}

// ObserveEpisode implements trainer.Observer.
func (s *EpisodeSink) ObserveEpisode(stats trainer.EpisodeStats) {
	entry := EpisodeEntry{
		RunID:       s.RunID,
		Problem:     stats.Problem,
		Episode:     stats.Episode,
		TotalReward: stats.TotalReward,
		Steps:       stats.Steps,
		Epsilon:     stats.Epsilon,
		FinalState:  stats.FinalState,
		Improved:    stats.Improved,
		Reached:     stats.Reached,
		Decision:    Decision(stats),
		Reason:      fmt.Sprintf("reward %.2f in %d steps", stats.TotalReward, stats.Steps),
	}
	s.mu.Lock()
	err := LogEpisode(s.DB, entry)
	s.mu.Unlock()
	if err != nil && s.Logger != nil {
		s.Logger.Warn("episode log write failed", "episode", stats.Episode, "error", err)
	}
}

// Decision classifies an episode for the log.
func Decision(stats trainer.EpisodeStats) string {
	switch {
	case stats.Improved:
		return "improved"
	case stats.Reached:
		return "solved"
	default:
		return "unsolved"
	}
}

// #endregion sink

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
