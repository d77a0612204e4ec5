package session

import "context"

// Store defines the interface for snapshot storage operations.
type Store interface {
	// Create stores a new snapshot with Version set to 1.
	Create(ctx context.Context, snap *Snapshot) error

	// Get retrieves a snapshot by session ID.
	// Returns nil if the snapshot is not found (not an error).
	// Returns an error wrapping ErrCorruptSnapshot if the stored payload cannot be decoded.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// Update replaces an existing snapshot with optimistic locking.
	// Verifies the Version matches the stored version, increments Version,
	// updates UpdatedAt, and persists the Snapshot.
	// Returns ErrVersionConflict if the version does not match.
	// Returns ErrNotFound if the snapshot does not exist.
	Update(ctx context.Context, snap *Snapshot) error

	// Delete discards the snapshot of a session.
	Delete(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}
