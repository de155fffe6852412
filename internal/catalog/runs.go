package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hydrator/internal/track"
)

// Run is the stored summary of one resolution run.
type Run struct {
	ID        string        `json:"id"`
	Started   time.Time     `json:"started"`
	Elapsed   time.Duration `json:"elapsed"`
	Batches   int           `json:"batches"`
	Summary   track.Summary `json:"summary"`
	Cancelled bool          `json:"cancelled"`
}

// RecordRun appends a run to the history.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, elapsed_ms, batches, resolved, unresolved, unfindable, total, cancelled)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Started.UTC().Format(time.RFC3339Nano),
		run.Elapsed.Milliseconds(),
		run.Batches,
		run.Summary.Resolved,
		run.Summary.Unresolved,
		run.Summary.Unfindable,
		run.Summary.Total,
		boolToInt(run.Cancelled),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, elapsed_ms, batches, resolved, unresolved, unfindable, total, cancelled
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run       Run
			started   sql.NullString
			elapsedMS int64
			cancelled int
		)
		if err := rows.Scan(&run.ID, &started, &elapsedMS, &run.Batches,
			&run.Summary.Resolved, &run.Summary.Unresolved, &run.Summary.Unfindable, &run.Summary.Total,
			&cancelled); err != nil {
			return nil, err
		}
		run.Started = parseTime(started)
		run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		run.Cancelled = cancelled != 0
		out = append(out, run)
	}
	return out, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
