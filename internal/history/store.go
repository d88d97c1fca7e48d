// Package history persists a record of every gallery run in SQLite so past
// outcomes can be listed with the history command.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/ductgallery/internal/pipeline"
)

// ErrRunNotFound is returned by Get for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Stage names the failure domain of a recorded failure.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageBuild Stage = "build"
	StageWrite Stage = "write"
)

// StatusWriteFailed marks a run whose examples were processed but whose
// gallery document could not be written.
const StatusWriteFailed = "write_failed"

// Run is one recorded gallery run.
type Run struct {
	ID            string
	StartedAt     time.Time
	Duration      time.Duration
	Total         int
	Fetched       int
	FetchFailures int
	BuildFailures int
	Status        string
	DryRun        bool
	Commit        string
	Failures      []Failure
}

// Failure is a per-example failure recorded with its run.
type Failure struct {
	Title string
	Stage Stage
	Error string
}

// FromOutcome converts a pipeline outcome into a Run. commit is the registry
// repository HEAD, empty when unknown.
func FromOutcome(o *pipeline.RunOutcome, commit string) Run {
	r := Run{
		ID:            o.RunID,
		StartedAt:     o.StartedAt,
		Duration:      o.Duration(),
		Total:         o.Total,
		Fetched:       len(o.Fetched),
		FetchFailures: o.FetchFailures(),
		BuildFailures: o.BuildFailures(),
		Status:        string(o.Status()),
		DryRun:        o.DryRun,
		Commit:        commit,
	}
	for _, f := range o.FetchErrs {
		r.Failures = append(r.Failures, Failure{Title: f.Title, Stage: StageFetch, Error: f.Err.Error()})
	}
	for _, f := range o.BuildErrs {
		r.Failures = append(r.Failures, Failure{Title: f.Title, Stage: StageBuild, Error: f.Err.Error()})
	}
	return r
}

// MarkWriteFailed records that writing the document at path failed.
func (r *Run) MarkWriteFailed(path string, err error) {
	r.Status = StatusWriteFailed
	r.Failures = append(r.Failures, Failure{Title: path, Stage: StageWrite, Error: err.Error()})
}

// SQLiteStore stores runs in SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if needed) the history database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		total INTEGER NOT NULL,
		fetched INTEGER NOT NULL,
		fetch_failures INTEGER NOT NULL,
		build_failures INTEGER NOT NULL,
		status TEXT NOT NULL,
		dry_run INTEGER NOT NULL,
		git_commit TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE TABLE IF NOT EXISTS run_failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		title TEXT NOT NULL,
		stage TEXT NOT NULL,
		error TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_failures_run_id ON run_failures(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores r and its failures in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_ms, total, fetched, fetch_failures, build_failures, status, dry_run, git_commit)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixMilli(), r.Duration.Milliseconds(), r.Total, r.Fetched,
		r.FetchFailures, r.BuildFailures, r.Status, r.DryRun, r.Commit,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, f := range r.Failures {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_failures (run_id, title, stage, error) VALUES (?, ?, ?, ?)",
			r.ID, f.Title, string(f.Stage), f.Error,
		); err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// List returns up to limit runs, newest first. Failures are not loaded.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, total, fetched, fetch_failures, build_failures, status, dry_run, git_commit
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Get returns one run with its failures.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, duration_ms, total, fetched, fetch_failures, build_failures, status, dry_run, git_commit
		 FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT title, stage, error FROM run_failures WHERE run_id = ? ORDER BY id", id)
	if err != nil {
		return Run{}, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f Failure
		var stage string
		if err := rows.Scan(&f.Title, &stage, &f.Error); err != nil {
			return Run{}, fmt.Errorf("scan failure: %w", err)
		}
		f.Stage = Stage(stage)
		r.Failures = append(r.Failures, f)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate rows: %w", err)
	}
	return r, nil
}

type scanner interface{ Scan(dest ...any) error }

func scanRun(sc scanner) (Run, error) {
	var (
		r         Run
		startedMS int64
		durMS     int64
		commit    sql.NullString
	)
	err := sc.Scan(&r.ID, &startedMS, &durMS, &r.Total, &r.Fetched, &r.FetchFailures, &r.BuildFailures, &r.Status, &r.DryRun, &commit)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = time.UnixMilli(startedMS).UTC()
	r.Duration = time.Duration(durMS) * time.Millisecond
	r.Commit = commit.String
	return r, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
