package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/creastat/feedback-assistant/session"
)

// InMemoryStore implements session.Store using an in-memory map with optimistic locking.
// Snapshots are deep-copied on the way in and out.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*session.Snapshot
}

// NewInMemoryStore creates a new in-memory snapshot store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		snapshots: make(map[string]*session.Snapshot),
	}
}

// Create implements session.Store.
// Creates a new snapshot with Version set to 1, replacing any existing one.
func (s *InMemoryStore) Create(ctx context.Context, snap *session.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	snap.CreatedAt = now
	snap.UpdatedAt = now
	snap.Version = 1

	s.snapshots[snap.ID] = snap.Clone()
	return nil
}

// Get implements session.Store.
// Returns nil if the snapshot is not found (not an error).
func (s *InMemoryStore) Get(ctx context.Context, id string) (*session.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.snapshots[id]
	if !exists {
		return nil, nil
	}
	return snap.Clone(), nil
}

// Update implements session.Store.
// Verifies Version matches, increments it, updates UpdatedAt, and persists the Snapshot.
func (s *InMemoryStore) Update(ctx context.Context, snap *session.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.snapshots[snap.ID]
	if !exists {
		return session.ErrNotFound
	}

	if stored.Version != snap.Version {
		return session.ErrVersionConflict
	}

	snap.Version++
	snap.UpdatedAt = time.Now()

	s.snapshots[snap.ID] = snap.Clone()
	return nil
}

// Delete implements session.Store.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, id)
	return nil
}

// Close implements session.Store.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = make(map[string]*session.Snapshot)
	return nil
}

var _ session.Store = (*InMemoryStore)(nil)
