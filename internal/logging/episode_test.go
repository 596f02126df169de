package logging

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AmirDavoodi/MPEC/internal/agent"
	"github.com/AmirDavoodi/MPEC/internal/env"
	"github.com/AmirDavoodi/MPEC/internal/policy"
	"github.com/AmirDavoodi/MPEC/internal/trainer"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	store, err := policy.NewStore(filepath.Join(t.TempDir(), "log.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store.DB()
}

// #endregion helpers

// #region log-episode-tests
func TestLogEpisode_Success(t *testing.T) {
	db := setupDB(t)

	entry := EpisodeEntry{
		RunID:       "run-1",
		Problem:     "2 + 3 = 5",
		Episode:     4,
		TotalReward: 10,
		Steps:       6,
		Epsilon:     0.1,
		FinalState:  "5",
		Improved:    true,
		Reached:     true,
		Decision:    "improved",
		Reason:      "reward 10.00 in 6 steps",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogEpisode(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := RecentEpisodes(db, "run-1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if !got[0].CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("created_at: expected %v, got %v", entry.CreatedAt, got[0].CreatedAt)
	}
	got[0].CreatedAt = entry.CreatedAt
	if got[0] != entry {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got[0], entry)
	}
}

func TestLogEpisode_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)

	before := time.Now().UTC()
	if err := LogEpisode(db, EpisodeEntry{RunID: "r", Problem: "p", Decision: "unsolved"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM episode_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogEpisode_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)

	if err := LogEpisode(db, EpisodeEntry{RunID: "r", Problem: "p", Decision: "unsolved"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var finalState, reason sql.NullString
	db.QueryRow("SELECT final_state, reason FROM episode_log").Scan(&finalState, &reason)
	if finalState.Valid || reason.Valid {
		t.Errorf("expected NULLs, got %v / %v", finalState, reason)
	}
}

func TestLogEpisode_ClosedDB(t *testing.T) {
	db := setupDB(t)
	db.Close()
	if err := LogEpisode(db, EpisodeEntry{RunID: "r", Problem: "p", Decision: "unsolved"}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

func TestRecentEpisodes_FilterAndOrder(t *testing.T) {
	db := setupDB(t)
	for i, run := range []string{"a", "b", "a", "a"} {
		if err := LogEpisode(db, EpisodeEntry{RunID: run, Problem: "p", Episode: i + 1, Decision: "unsolved"}); err != nil {
			t.Fatalf("log %d: %v", i, err)
		}
	}

	got, err := RecentEpisodes(db, "a", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Episode != 4 || got[1].Episode != 3 {
		t.Errorf("expected episodes 4,3 of run a, got %+v", got)
	}

	all, err := RecentEpisodes(db, "", 10)
	if err != nil {
		t.Fatalf("recent all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 rows, got %d", len(all))
	}
}

// #endregion log-episode-tests

// #region sink-tests
func TestEpisodeSink(t *testing.T) {
	db := setupDB(t)
	sink := &EpisodeSink{DB: db, RunID: "run-x"}

	sink.ObserveEpisode(trainer.EpisodeStats{Problem: "2 + 3 = 5", Episode: 1, TotalReward: 10, Steps: 6, FinalState: "5", Reached: true, Improved: true})
	sink.ObserveEpisode(trainer.EpisodeStats{Problem: "2 + 3 = 5", Episode: 2, TotalReward: 8, Steps: 8, FinalState: "5", Reached: true})
	sink.ObserveEpisode(trainer.EpisodeStats{Problem: "2 + 3 = 5", Episode: 3, TotalReward: -4, Steps: 10, FinalState: "(2 + 2) + 1"})

	got, err := RecentEpisodes(db, "run-x", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	want := []string{"unsolved", "solved", "improved"}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(got))
	}
	for i, d := range want {
		if got[i].Decision != d {
			t.Errorf("row %d: expected %q, got %q", i, d, got[i].Decision)
		}
	}
}

func TestEpisodeSink_WriteFailureIsLogged(t *testing.T) {
	db := setupDB(t)
	db.Close()

	var buf bytes.Buffer
	sink := &EpisodeSink{DB: db, RunID: "r", Logger: New("warn", FormatJSON, &buf)}
	sink.ObserveEpisode(trainer.EpisodeStats{Problem: "p", Episode: 7})

	if !strings.Contains(buf.String(), "episode log write failed") {
		t.Fatalf("expected warning, got %q", buf.String())
	}
}

func countEpisodes(t *testing.T, db *sql.DB, runID string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM episode_log WHERE run_id = ?`, runID).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestLogEpisode_ConcurrentWritersKeepEveryRow(t *testing.T) {
	db := setupDB(t)
	const writers, perWriter = 8, 50

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ep := 1; ep <= perWriter; ep++ {
				errs <- LogEpisode(db, EpisodeEntry{
					RunID: "concurrent", Problem: fmt.Sprintf("p%d", w), Episode: ep, Decision: "unsolved",
				})
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent write: %v", err)
		}
	}
	if got := countEpisodes(t, db, "concurrent"); got != writers*perWriter {
		t.Fatalf("expected %d rows, got %d", writers*perWriter, got)
	}
}

func TestEpisodeSink_SharedByBatchWorkers(t *testing.T) {
	db := setupDB(t)

	var buf bytes.Buffer
	sink := &EpisodeSink{DB: db, RunID: "batch", Logger: New("warn", FormatJSON, &buf)}

	problems := make([]trainer.Problem, 8)
	for i := range problems {
		problems[i] = trainer.Problem{Variant: env.VariantRecursive, Expression: "2 + 3", Target: 5}
	}
	cfg := trainer.Config{NumEpisodes: 100, MaxSteps: 20, DecayEvery: 50, DecayRate: 0.995}
	build := trainer.Builder(agent.DefaultConfig(), cfg, 1, nil, sink)

	if _, err := trainer.TrainBatch(context.Background(), problems, 8, build); err != nil {
		t.Fatalf("train batch: %v", err)
	}
	if got, want := countEpisodes(t, db, "batch"), len(problems)*cfg.NumEpisodes; got != want {
		t.Fatalf("expected %d rows, got %d", want, got)
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected warnings: %s", buf.String())
	}
}

// #endregion sink-tests

// #region logger-tests
func TestNew_JSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", FormatJSON, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "episode", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["msg"] != "shown" || rec["service"] != "mathrl" || rec["episode"] != float64(3) {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	New("debug", FormatText, &buf).Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=v") {
		t.Errorf("unexpected text output: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("") != nil {
		t.Error("expected nil for empty string")
	}
	if nullIfEmpty("hello") != "hello" {
		t.Error("expected passthrough for non-empty string")
	}
}

// #endregion logger-tests
