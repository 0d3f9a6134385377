// Package checkpoint journals harvest runs so an interrupted or failed
// run can be resumed from its last completed page. Only run metadata is
// stored, parcel records live exclusively in the export files.
package checkpoint

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lalmajed/citysh/internal/checkpoint/db"
)

// Schema is the journal's sqlite schema, exported so callers can open
// the database through sqliteutil.
var Schema = db.Schema

// Run states as stored in the journal.
const (
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
	StateStopped = "stopped"
)

// Run is one journaled harvest run.
type Run struct {
	ID           string
	Source       string
	State        string
	StartedAt    int64
	FinishedAt   int64
	LastOffset   int64
	Fetched      int64
	Kept         int64
	RecordLimit  int64
	OutputPrefix string
	Error        string
}

// Resumable reports whether a new run may pick up from this one's
// last offset.
func (r Run) Resumable() bool {
	return r.State == StateFailed || r.State == StateStopped
}

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// Begin journals the start of a run.
func (s Store) Begin(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO harvest_runs (id, source, state, started_at, last_offset, record_limit, output_prefix)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, StateRunning, run.StartedAt, run.LastOffset, run.RecordLimit, run.OutputPrefix)
	if err != nil {
		return fmt.Errorf("journal run %s: %w", run.ID, err)
	}
	return nil
}

// Progress records the position after a completed page. lastOffset is
// where the next page would start, which makes it the resume offset if
// the run dies right after this write.
func (s Store) Progress(ctx context.Context, id string, lastOffset, fetched, kept int64) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE harvest_runs SET last_offset = ?, fetched = ?, kept = ? WHERE id = ?`,
		lastOffset, fetched, kept, id)
	if err != nil {
		return fmt.Errorf("journal progress for run %s: %w", id, err)
	}
	return nil
}

// Finish seals the run with its terminal state. errText is empty unless
// the run failed.
func (s Store) Finish(ctx context.Context, id, state string, finishedAt int64, errText string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE harvest_runs SET state = ?, finished_at = ?, error = ? WHERE id = ?`,
		state, finishedAt, errText, id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	return nil
}

// Get returns one run by id.
func (s Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	return scanRun(row)
}

// List returns the most recent runs, newest first.
func (s Store) List(ctx context.Context, limit int64) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestResumable returns the newest failed or stopped run for the
// given source. ok is false when every journaled run completed.
func (s Store) LatestResumable(ctx context.Context, source string) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+`
WHERE source = ? AND state IN (?, ?)
ORDER BY started_at DESC LIMIT 1`,
		source, StateFailed, StateStopped)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

const selectRuns = `
SELECT id, source, state, started_at, finished_at, last_offset, fetched, kept, record_limit, output_prefix, error
FROM harvest_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	err := row.Scan(
		&run.ID, &run.Source, &run.State, &run.StartedAt, &run.FinishedAt,
		&run.LastOffset, &run.Fetched, &run.Kept, &run.RecordLimit,
		&run.OutputPrefix, &run.Error)
	return run, err
}
