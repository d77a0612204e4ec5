package drivers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/creastat/feedback-assistant/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		store, err := NewStore(StoreTypeMemory)
		require.NoError(t, err)
		assert.IsType(t, &InMemoryStore{}, store)
	})

	t.Run("RedisRequiresClient", func(t *testing.T) {
		_, err := NewStore(StoreTypeRedis)
		assert.ErrorIs(t, err, session.ErrInvalidConfig)
	})

	t.Run("FileRequiresDir", func(t *testing.T) {
		_, err := NewStore(StoreTypeFile)
		assert.ErrorIs(t, err, session.ErrInvalidConfig)
	})

	t.Run("SQLiteRequiresPath", func(t *testing.T) {
		_, err := NewStore(StoreTypeSQLite)
		assert.ErrorIs(t, err, session.ErrInvalidConfig)
	})

	t.Run("File", func(t *testing.T) {
		store, err := NewStore(StoreTypeFile, WithDir(t.TempDir()))
		require.NoError(t, err)
		assert.IsType(t, &FileStore{}, store)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := NewStore("etcd")
		assert.ErrorIs(t, err, session.ErrInvalidStoreType)
	})
}

func TestFileStore_CorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "broken", session.SnapshotKey+".json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err = store.Get(context.Background(), "broken")
	assert.ErrorIs(t, err, session.ErrCorruptSnapshot)
}

func TestFileStore_FileMode(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), sampleSnapshot("mode")))

	info, err := os.Stat(filepath.Join(dir, "mode", session.SnapshotKey+".json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_RejectsEscapingIDs(t *testing.T) {
	root := t.TempDir()
	precious := filepath.Join(root, "precious.txt")
	require.NoError(t, os.WriteFile(precious, []byte("keep"), 0o600))

	dir := filepath.Join(root, "sessions")
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), sampleSnapshot("kept")))

	ctx := context.Background()
	for _, id := range []string{"", ".", "..", "../..", "a/b", `a\b`, "../sessions"} {
		t.Run(id, func(t *testing.T) {
			assert.ErrorIs(t, store.Delete(ctx, id), session.ErrInvalidConfig)

			_, err := store.Get(ctx, id)
			assert.ErrorIs(t, err, session.ErrInvalidConfig)

			snap := sampleSnapshot(id)
			assert.ErrorIs(t, store.Create(ctx, snap), session.ErrInvalidConfig)
		})
	}

	_, err = os.Stat(precious)
	assert.NoError(t, err)
	got, err := store.Get(ctx, "kept")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRedisStore_KeyAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, time.Hour)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Create(ctx, sampleSnapshot("abc")))

	key := "session:abc:" + session.SnapshotKey
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	// the session ends when the key expires
	mr.FastForward(2 * time.Hour)
	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_CorruptSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, 0)
	defer store.Close()

	require.NoError(t, mr.Set("session:bad:"+session.SnapshotKey, "[[["))
	_, err := store.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, session.ErrCorruptSnapshot)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, sampleSnapshot("durable")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "durable")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Messages, 3)
}
