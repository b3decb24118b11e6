package artifact

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// History persists one row per planning run in a SQLite database so
// runs can be compared over time even after their files rotate away.
type History struct {
	db *sql.DB
}

// OpenHistory opens (or creates) the run-history database at path and
// ensures the schema exists.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	h := &History{db: db}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history migrate: %w", err)
	}
	return h, nil
}

func (h *History) migrate() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			started_at      TEXT NOT NULL,
			finished_at     TEXT NOT NULL,
			rounds          INTEGER NOT NULL,
			tool_calls      INTEGER NOT NULL,
			input_tokens    INTEGER NOT NULL,
			output_tokens   INTEGER NOT NULL,
			delimited       BOOLEAN NOT NULL DEFAULT 0,
			lookback_days   INTEGER NOT NULL DEFAULT 0,
			prompt_file     TEXT NOT NULL,
			raw_file        TEXT NOT NULL,
			transcript_file TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started
			ON runs(started_at DESC);
	`)
	return err
}

// Record inserts one run.
func (h *History) Record(rec *RunRecord) error {
	_, err := h.db.Exec(`
		INSERT INTO runs (
			id, started_at, finished_at, rounds, tool_calls,
			input_tokens, output_tokens, delimited, lookback_days,
			prompt_file, raw_file, transcript_file
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.Format(time.RFC3339),
		rec.FinishedAt.Format(time.RFC3339),
		rec.Rounds, rec.ToolCalls,
		rec.InputTokens, rec.OutputTokens, rec.Delimited, rec.LookbackDays,
		rec.PromptFile, rec.RawFile, rec.TranscriptFile,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (h *History) Recent(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := h.db.Query(`
		SELECT id, started_at, finished_at, rounds, tool_calls,
		       input_tokens, output_tokens, delimited, lookback_days,
		       prompt_file, raw_file, transcript_file
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished string
		if err := rows.Scan(
			&rec.ID, &started, &finished, &rec.Rounds, &rec.ToolCalls,
			&rec.InputTokens, &rec.OutputTokens, &rec.Delimited, &rec.LookbackDays,
			&rec.PromptFile, &rec.RawFile, &rec.TranscriptFile,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}
