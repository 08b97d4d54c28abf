// Package store persists the console's local state, currently the last
// activity identifier, in an embedded SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	keyActivityID = "activity_id"

	schema = `CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`
)

// Store is a small key/value table in SQLite.
type Store struct {
	sqlDB *sql.DB
	clock clockwork.Clock
}

// Open opens (creating if needed) the database at path. ":memory:" opens a
// private in-memory database. A nil clock means the real clock.
func Open(path string, clock clockwork.Clock) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writes.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("local store opened")
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{sqlDB: sqlDB, clock: clock}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// ActivityID returns the persisted activity identifier, or "" when none was
// saved.
func (s *Store) ActivityID(ctx context.Context) (string, error) {
	return s.get(ctx, keyActivityID)
}

// SavedActivity returns the persisted activity identifier and when it was
// saved. The id is "" when none was saved.
func (s *Store) SavedActivity(ctx context.Context) (string, time.Time, error) {
	var (
		value     string
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value, updated_at FROM kv WHERE key = ?`, keyActivityID,
	).Scan(&value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("read %s: %w", keyActivityID, err)
	}
	return value, time.UnixMilli(updatedAt).UTC(), nil
}

// SetActivityID persists id for the next launch.
func (s *Store) SetActivityID(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("activity id is required")
	}
	return s.put(ctx, keyActivityID, id)
}

// ClearActivityID forgets the persisted activity identifier.
func (s *Store) ClearActivityID(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, keyActivityID); err != nil {
		return fmt.Errorf("delete %s: %w", keyActivityID, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.clock.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
