package drivers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/creastat/feedback-assistant/session"
)

// FileStore implements session.Store with one JSON file per session:
// <dir>/<session id>/chatMessages.json.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a file-backed snapshot store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Create implements session.Store.
func (s *FileStore) Create(ctx context.Context, snap *session.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	snap.CreatedAt = now
	snap.UpdatedAt = now
	snap.Version = 1

	return s.write(snap)
}

// Get implements session.Store.
// Returns nil if the snapshot is not found (not an error).
func (s *FileStore) Get(ctx context.Context, id string) (*session.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(id)
}

// Update implements session.Store.
func (s *FileStore) Update(ctx context.Context, snap *session.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.read(snap.ID)
	if err != nil {
		return err
	}
	if stored == nil {
		return session.ErrNotFound
	}
	if stored.Version != snap.Version {
		return session.ErrVersionConflict
	}

	snap.Version++
	snap.UpdatedAt = time.Now()

	return s.write(snap)
}

// Delete implements session.Store.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.sessionDir(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close implements session.Store.
func (s *FileStore) Close() error {
	return nil
}

// sessionDir resolves the directory of id, refusing ids that would escape the store root.
func (s *FileStore) sessionDir(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, filepath.Separator) {
		return "", fmt.Errorf("%w: invalid session id %q", session.ErrInvalidConfig, id)
	}
	return filepath.Join(s.dir, id), nil
}

func (s *FileStore) path(id string) (string, error) {
	dir, err := s.sessionDir(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, session.SnapshotKey+".json"), nil
}

func (s *FileStore) read(id string) (*session.Snapshot, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return session.DecodeSnapshot(b)
}

// write replaces the snapshot file atomically through a rename.
func (s *FileStore) write(snap *session.Snapshot) error {
	path, err := s.path(snap.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}

	b, err := session.EncodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

var _ session.Store = (*FileStore)(nil)
