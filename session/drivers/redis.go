package drivers

import (
	"context"
	"errors"
	"time"

	"github.com/creastat/feedback-assistant/session"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for sessions
	sessionKeyPrefix = "session:"
	// Default TTL for session keys (24 hours)
	defaultTTL = 24 * time.Hour
)

// RedisStore implements session.Store using Redis with optimistic locking.
// The key TTL doubles as the session lifetime: an idle session expires on its own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-based snapshot store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// Create implements session.Store.
// Creates a new snapshot with Version set to 1 and sets TTL.
func (s *RedisStore) Create(ctx context.Context, snap *session.Snapshot) error {
	now := time.Now()
	snap.CreatedAt = now
	snap.UpdatedAt = now
	snap.Version = 1

	val, err := session.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, s.key(snap.ID), val, s.ttl).Err()
}

// Get implements session.Store.
// Returns nil if the snapshot is not found (not an error).
// Refreshes TTL on every read.
func (s *RedisStore) Get(ctx context.Context, id string) (*session.Snapshot, error) {
	key := s.key(id)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap, err := session.DecodeSnapshot(val)
	if err != nil {
		return nil, err
	}

	// Refresh TTL on read; a failed refresh only shortens the session.
	_ = s.client.Expire(ctx, key, s.ttl).Err()

	return snap, nil
}

// Update implements session.Store.
// Implements optimistic locking using Redis WATCH/MULTI/EXEC.
// Refreshes TTL on every write.
func (s *RedisStore) Update(ctx context.Context, snap *session.Snapshot) error {
	key := s.key(snap.ID)

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return session.ErrNotFound
		}
		if err != nil {
			return err
		}

		stored, err := session.DecodeSnapshot(val)
		if err != nil {
			return err
		}

		if stored.Version != snap.Version {
			return session.ErrVersionConflict
		}

		snap.Version++
		snap.UpdatedAt = time.Now()

		newVal, err := session.EncodeSnapshot(snap)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.ttl)
			return nil
		})
		return err
	}, key)
}

// Delete implements session.Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Close implements session.Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// key constructs the Redis key for a session ID.
func (s *RedisStore) key(id string) string {
	return sessionKeyPrefix + id + ":" + session.SnapshotKey
}

var _ session.Store = (*RedisStore)(nil)
