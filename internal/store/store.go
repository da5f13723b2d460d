// SPDX-License-Identifier: MIT

// Package store persists analysis run history in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Run is one recorded analysis.
type Run struct {
	ID           string    `json:"id"`
	ChannelID    string    `json:"channel_id"`
	ChannelName  string    `json:"channel_name"`
	RequestedBy  string    `json:"requested_by"`
	Operation    string    `json:"operation"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Posts        int       `json:"posts"`
	TotalVotes   int       `json:"total_votes"`
	UniqueVoters int       `json:"unique_voters"`
	Status       string    `json:"status"` // ok | failed
	Error        string    `json:"error,omitempty"`
}

// RankedPost is a ranked entry of a run, kept for the /api/runs history.
type RankedPost struct {
	RunID     string `json:"run_id"`
	Rank      int    `json:"rank"`
	MessageID string `json:"message_id"`
	Author    string `json:"author"`
	Link      string `json:"link"`
	Votes     int    `json:"votes"`
}

// Store provides SQLite persistence for run history.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// WAL mode and busy_timeout avoid "database locked" errors under the
// concurrent readiness checks.
func New(dbPath string) (*Store, error) {
	// modernc.org/sqlite takes pragmas in _pragma=name(value) form; this
	// applies them to every connection in the pool.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		channel_name TEXT NOT NULL DEFAULT '',
		requested_by TEXT NOT NULL DEFAULT '',
		operation TEXT NOT NULL DEFAULT 'full',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		posts INTEGER NOT NULL DEFAULT 0,
		total_votes INTEGER NOT NULL DEFAULT 0,
		unique_voters INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'ok' CHECK(status IN ('ok', 'failed')),
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS run_posts (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		rank INTEGER NOT NULL,
		message_id TEXT NOT NULL,
		author TEXT NOT NULL,
		link TEXT NOT NULL,
		votes INTEGER NOT NULL,
		PRIMARY KEY (run_id, message_id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);
	CREATE INDEX IF NOT EXISTS idx_runs_channel ON runs(channel_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun inserts a finished run together with its ranked posts.
func (s *Store) RecordRun(ctx context.Context, run Run, posts []RankedPost) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, channel_id, channel_name, requested_by, operation,
		started_at, finished_at, posts, total_votes, unique_voters, status, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ChannelID, run.ChannelName, run.RequestedBy, run.Operation,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Posts, run.TotalVotes, run.UniqueVoters, run.Status, run.Error)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, p := range posts {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO run_posts (run_id, rank, message_id, author, link, votes)
		VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, p.Rank, p.MessageID, p.Author, p.Link, p.Votes)
		if err != nil {
			return fmt.Errorf("insert run post: %w", err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, channel_id, channel_name, requested_by, operation,
		started_at, finished_at, posts, total_votes, unique_voters, status, error
	FROM runs
	ORDER BY finished_at DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RankedPosts returns the ranked entries recorded for a run.
func (s *Store) RankedPosts(ctx context.Context, runID string) ([]RankedPost, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT run_id, rank, message_id, author, link, votes
	FROM run_posts
	WHERE run_id = ?
	ORDER BY rank, message_id`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var posts []RankedPost
	for rows.Next() {
		var p RankedPost
		if err := rows.Scan(&p.RunID, &p.Rank, &p.MessageID, &p.Author, &p.Link, &p.Votes); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// LastRun returns the most recent run, or ok=false if none exists.
func (s *Store) LastRun(ctx context.Context) (Run, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, channel_id, channel_name, requested_by, operation,
		started_at, finished_at, posts, total_votes, unique_voters, status, error
	FROM runs
	ORDER BY finished_at DESC
	LIMIT 1`)
	if err != nil {
		return Run{}, false, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return Run{}, false, rows.Err()
	}
	r, err := scanRun(rows)
	if err != nil {
		return Run{}, false, err
	}
	return r, true, rows.Err()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var r Run
	var started, finished string
	if err := rows.Scan(&r.ID, &r.ChannelID, &r.ChannelName, &r.RequestedBy, &r.Operation,
		&started, &finished, &r.Posts, &r.TotalVotes, &r.UniqueVoters, &r.Status, &r.Error); err != nil {
		return Run{}, err
	}
	var err error
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Run{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return r, nil
}
