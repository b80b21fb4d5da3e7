// Package state persists run history: every snapshot load becomes an epoch
// record, every validation run attaches to its epoch. The history survives
// process restarts so `storelens history` and the history endpoint can show
// what loaded, when, and how clean it was.
package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver
)

//go:embed schema.sql
var schemaSQL string

// Epoch records one snapshot load.
type Epoch struct {
	ID        string           `json:"id"`
	DataDir   string           `json:"data_dir"`
	Cities    []string         `json:"cities"`
	RowCounts map[string]int64 `json:"row_counts"`
	Duration  time.Duration    `json:"duration"`
	Status    string           `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// ValidationRun records one validation pass over an epoch.
type ValidationRun struct {
	ID        string    `json:"id"`
	EpochID   string    `json:"epoch_id"`
	Checks    int       `json:"checks"`
	Findings  int       `json:"findings"`
	Errors    int       `json:"errors"`
	Warnings  int       `json:"warnings"`
	Passed    bool      `json:"passed"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the SQLite-backed history store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping state database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordEpoch inserts a load epoch, assigning ID and CreatedAt when unset.
func (s *Store) RecordEpoch(ctx context.Context, e *Epoch) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	counts, err := json.Marshal(e.RowCounts)
	if err != nil {
		return fmt.Errorf("failed to encode row counts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO load_epochs (id, data_dir, cities, row_counts, duration_ms, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DataDir, strings.Join(e.Cities, ","), string(counts),
		e.Duration.Milliseconds(), e.Status, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record epoch: %w", err)
	}
	return nil
}

// RecordValidation inserts a validation run, assigning ID and CreatedAt
// when unset.
func (s *Store) RecordValidation(ctx context.Context, v *ValidationRun) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO validation_runs (id, epoch_id, checks, findings, errors, warnings, passed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.EpochID, v.Checks, v.Findings, v.Errors, v.Warnings, v.Passed, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record validation run: %w", err)
	}
	return nil
}

// RecentEpochs returns the newest epochs, most recent first.
func (s *Store) RecentEpochs(ctx context.Context, limit int) ([]Epoch, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data_dir, cities, row_counts, duration_ms, status, created_at
		FROM load_epochs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query epochs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var epochs []Epoch
	for rows.Next() {
		var e Epoch
		var cities, counts string
		var durationMS int64
		if err := rows.Scan(&e.ID, &e.DataDir, &cities, &counts,
			&durationMS, &e.Status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan epoch: %w", err)
		}
		if cities != "" {
			e.Cities = strings.Split(cities, ",")
		}
		if err := json.Unmarshal([]byte(counts), &e.RowCounts); err != nil {
			return nil, fmt.Errorf("failed to decode row counts: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		epochs = append(epochs, e)
	}
	return epochs, rows.Err()
}

// RecentValidations returns the newest validation runs, most recent first.
func (s *Store) RecentValidations(ctx context.Context, limit int) ([]ValidationRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, epoch_id, checks, findings, errors, warnings, passed, created_at
		FROM validation_runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query validation runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []ValidationRun
	for rows.Next() {
		var v ValidationRun
		if err := rows.Scan(&v.ID, &v.EpochID, &v.Checks, &v.Findings,
			&v.Errors, &v.Warnings, &v.Passed, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan validation run: %w", err)
		}
		runs = append(runs, v)
	}
	return runs, rows.Err()
}
