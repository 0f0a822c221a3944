// Package runlog persists training-run history in a local SQLite database
// so past runs are queryable without parsing checkpoint filenames.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    gap_k       INTEGER NOT NULL,
    started_at  TIMESTAMP NOT NULL,
    finished_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS epochs (
    run_id     TEXT NOT NULL REFERENCES runs(id),
    epoch      INTEGER NOT NULL,
    loss       REAL NOT NULL,
    gap        REAL NOT NULL,
    checkpoint TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (run_id, epoch)
);`

// Log is an open run-log database.
type Log struct {
	db *sql.DB
}

// EpochRecord is one epoch's outcome.
type EpochRecord struct {
	Epoch      int
	Loss       float64
	GAP        float64
	Checkpoint string
}

// Open opens (creating if needed) the run log at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: opening %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog: creating schema: %w", err)
	}
	return &Log{db: db}, nil
}

// StartRun records a new run and returns its id.
func (l *Log) StartRun(ctx context.Context, name string, gapK int) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, gap_k, started_at) VALUES (?, ?, ?, ?)`,
		id, name, gapK, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("runlog: starting run: %w", err)
	}
	return id, nil
}

// RecordEpoch appends one epoch row to a run.
func (l *Log) RecordEpoch(ctx context.Context, runID string, rec EpochRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO epochs (run_id, epoch, loss, gap, checkpoint, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, rec.Epoch, rec.Loss, rec.GAP, rec.Checkpoint, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("runlog: recording epoch %d: %w", rec.Epoch, err)
	}
	return nil
}

// FinishRun stamps the run's completion time.
func (l *Log) FinishRun(ctx context.Context, runID string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ? WHERE id = ?`, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("runlog: finishing run: %w", err)
	}
	return nil
}

// Epochs returns a run's epoch rows in order.
func (l *Log) Epochs(ctx context.Context, runID string) ([]EpochRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT epoch, loss, gap, checkpoint FROM epochs WHERE run_id = ? ORDER BY epoch`, runID)
	if err != nil {
		return nil, fmt.Errorf("runlog: listing epochs: %w", err)
	}
	defer rows.Close()

	var recs []EpochRecord
	for rows.Next() {
		var r EpochRecord
		if err := rows.Scan(&r.Epoch, &r.Loss, &r.GAP, &r.Checkpoint); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// BestEpoch returns the epoch with the highest GAP for a run.
func (l *Log) BestEpoch(ctx context.Context, runID string) (EpochRecord, error) {
	var r EpochRecord
	err := l.db.QueryRowContext(ctx,
		`SELECT epoch, loss, gap, checkpoint FROM epochs WHERE run_id = ? ORDER BY gap DESC, epoch LIMIT 1`,
		runID).Scan(&r.Epoch, &r.Loss, &r.GAP, &r.Checkpoint)
	if err == sql.ErrNoRows {
		return r, fmt.Errorf("runlog: run %s has no epochs", runID)
	}
	return r, err
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}
