// Package store keeps falsified property runs in a SQLite database so that
// they can be listed and replayed with their seed.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Memory is the path of a private in-memory store.
const Memory = ":memory:"

// ErrNotFound is returned when no failure matches.
var ErrNotFound = errors.New("store: failure not found")

// Failure is one falsified run.
type Failure struct {
	ID             string
	Property       string
	Seed           int64
	Size           int
	Tests          int
	Shrinks        int
	Counterexample string
	Cause          string
	RecordedAt     time.Time
}

// Store is a SQLite backed failure store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the store at path. Memory opens a private
// in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS failures (
			id TEXT PRIMARY KEY,
			property TEXT NOT NULL,
			seed INTEGER NOT NULL,
			size INTEGER NOT NULL,
			tests INTEGER NOT NULL,
			shrinks INTEGER NOT NULL,
			counterexample TEXT NOT NULL,
			cause TEXT NOT NULL,
			recorded_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS failures_property ON failures (property, recorded_at);
		CREATE VIRTUAL TABLE IF NOT EXISTS failures_text USING fts5(
			id UNINDEXED,
			property,
			counterexample,
			cause,
			tokenize='unicode61'
		);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create failure tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Record stores f. An empty ID is replaced by a new UUID and a zero
// RecordedAt by the current time. The stored failure is returned.
func (s *Store) Record(ctx context.Context, f Failure) (Failure, error) {
	if f.Property == "" {
		return Failure{}, fmt.Errorf("failure property cannot be empty")
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.RecordedAt.IsZero() {
		f.RecordedAt = time.Now()
	}
	f.RecordedAt = f.RecordedAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Failure{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO failures (id, property, seed, size, tests, shrinks, counterexample, cause, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.Property, f.Seed, f.Size, f.Tests, f.Shrinks, f.Counterexample, f.Cause, f.RecordedAt.UnixNano())
	if err != nil {
		return Failure{}, fmt.Errorf("failed to insert failure: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO failures_text (id, property, counterexample, cause) VALUES (?, ?, ?, ?)
	`, f.ID, f.Property, f.Counterexample, f.Cause)
	if err != nil {
		return Failure{}, fmt.Errorf("failed to index failure: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Failure{}, fmt.Errorf("failed to commit failure: %w", err)
	}
	return f, nil
}

// List returns the failures of property, newest first. An empty property
// lists every failure.
func (s *Store) List(ctx context.Context, property string) ([]Failure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + columns + ` FROM failures`
	var args []any
	if property != "" {
		query += ` WHERE property = ?`
		args = append(args, property)
	}
	query += ` ORDER BY recorded_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFailures(rows)
}

// Latest returns the newest failure of property.
func (s *Store) Latest(ctx context.Context, property string) (Failure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+columns+` FROM failures
		WHERE property = ?
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT 1
	`, property)
	if err != nil {
		return Failure{}, fmt.Errorf("failed to query latest failure: %w", err)
	}
	defer func() { _ = rows.Close() }()

	failures, err := scanFailures(rows)
	if err != nil {
		return Failure{}, err
	}
	if len(failures) == 0 {
		return Failure{}, fmt.Errorf("%w: property %q", ErrNotFound, property)
	}
	return failures[0], nil
}

// Search finds failures whose property, counterexample or cause match an
// FTS5 query, best match first.
func (s *Store) Search(ctx context.Context, query string) ([]Failure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixed+` FROM failures f
		JOIN failures_text ON failures_text.id = f.id
		WHERE failures_text MATCH ?
		ORDER BY failures_text.rank
		LIMIT 50
	`, query)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFailures(rows)
}

// Delete removes the failure with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM failures WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete failure: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete failure: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %q", ErrNotFound, id)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM failures_text WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to unindex failure: %w", err)
	}
	return nil
}

// Clear removes the failures of property, or every failure when property
// is empty, and returns how many were removed.
func (s *Store) Clear(ctx context.Context, property string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	where, args := "", []any(nil)
	if property != "" {
		where, args = " WHERE property = ?", []any{property}
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM failures`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear failures: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM failures_text`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to clear failure index: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to clear failures: %w", err)
	}
	return int(n), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const (
	columns  = `id, property, seed, size, tests, shrinks, counterexample, cause, recorded_at`
	prefixed = `f.id, f.property, f.seed, f.size, f.tests, f.shrinks, f.counterexample, f.cause, f.recorded_at`
)

// scanFailures converts SQL rows to a Failure slice.
func scanFailures(rows *sql.Rows) ([]Failure, error) {
	var results []Failure
	for rows.Next() {
		var f Failure
		var recordedAt int64
		if err := rows.Scan(&f.ID, &f.Property, &f.Seed, &f.Size, &f.Tests, &f.Shrinks, &f.Counterexample, &f.Cause, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		f.RecordedAt = time.Unix(0, recordedAt).UTC()
		results = append(results, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return results, nil
}
