package drivers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creastat/feedback-assistant/session"

	_ "modernc.org/sqlite"
)

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS session_snapshots (
	id         TEXT NOT NULL,
	key        TEXT NOT NULL,
	version    INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	messages   TEXT NOT NULL,
	PRIMARY KEY (id, key)
)`

// SQLiteStore implements session.Store on a local SQLite database.
// Optimistic locking is a conditional UPDATE on the version column.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// single writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createSnapshotsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshots table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Create implements session.Store.
func (s *SQLiteStore) Create(ctx context.Context, snap *session.Snapshot) error {
	now := time.Now()
	snap.CreatedAt = now
	snap.UpdatedAt = now
	snap.Version = 1

	payload, err := session.EncodeMessages(snap.Messages)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_snapshots (id, key, version, created_at, updated_at, messages)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, key) DO UPDATE SET
			version = excluded.version,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			messages = excluded.messages`,
		snap.ID, session.SnapshotKey, snap.Version, now.UnixNano(), now.UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// Get implements session.Store.
// Returns nil if the snapshot is not found (not an error).
func (s *SQLiteStore) Get(ctx context.Context, id string) (*session.Snapshot, error) {
	var (
		version            int64
		createdAt, updated int64
		payload            string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT version, created_at, updated_at, messages
		FROM session_snapshots WHERE id = ? AND key = ?`,
		id, session.SnapshotKey).Scan(&version, &createdAt, &updated, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	messages, err := session.DecodeMessages([]byte(payload))
	if err != nil {
		return nil, err
	}

	return &session.Snapshot{
		ID:        id,
		CreatedAt: time.Unix(0, createdAt),
		UpdatedAt: time.Unix(0, updated),
		Version:   version,
		Messages:  messages,
	}, nil
}

// Update implements session.Store.
func (s *SQLiteStore) Update(ctx context.Context, snap *session.Snapshot) error {
	payload, err := session.EncodeMessages(snap.Messages)
	if err != nil {
		return err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE session_snapshots
		SET version = version + 1, updated_at = ?, messages = ?
		WHERE id = ? AND key = ? AND version = ?`,
		now.UnixNano(), string(payload), snap.ID, session.SnapshotKey, snap.Version)
	if err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM session_snapshots WHERE id = ? AND key = ?`,
			snap.ID, session.SnapshotKey).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return session.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check snapshot: %w", err)
		}
		return session.ErrVersionConflict
	}

	snap.Version++
	snap.UpdatedAt = now
	return nil
}

// Delete implements session.Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_snapshots WHERE id = ? AND key = ?`, id, session.SnapshotKey)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Close implements session.Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ session.Store = (*SQLiteStore)(nil)
