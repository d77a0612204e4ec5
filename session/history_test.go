package session_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/creastat/feedback-assistant/session"
	"github.com/creastat/feedback-assistant/session/drivers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// failingStore fails every operation.
type failingStore struct {
	mu     sync.Mutex
	writes int
}

func (s *failingStore) Create(ctx context.Context, snap *session.Snapshot) error {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return errors.New("disk full")
}

func (s *failingStore) Get(ctx context.Context, id string) (*session.Snapshot, error) {
	return nil, errors.New("permission denied")
}

func (s *failingStore) Update(ctx context.Context, snap *session.Snapshot) error {
	return errors.New("disk full")
}

func (s *failingStore) Delete(ctx context.Context, id string) error { return nil }
func (s *failingStore) Close() error                               { return nil }

func TestHistory_InitializeWithoutSnapshot(t *testing.T) {
	h := session.NewHistory("fresh", drivers.NewInMemoryStore())
	defer h.Close()

	log := h.Initialize(context.Background())
	require.Len(t, log, 1)
	assert.Equal(t, session.SeedMessage(), log[0])
}

func TestHistory_InitializeCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken", session.SnapshotKey+".json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(`{"messages": "nope"`), 0o600))

	store, err := drivers.NewFileStore(dir)
	require.NoError(t, err)

	h := session.NewHistory("broken", store)
	defer h.Close()

	var log []session.Message
	require.NotPanics(t, func() { log = h.Initialize(context.Background()) })
	require.Len(t, log, 1)
	assert.Equal(t, session.SeedMessage(), log[0])
}

func TestHistory_InitializeOutOfOrderSnapshot(t *testing.T) {
	store := drivers.NewInMemoryStore()
	require.NoError(t, store.Create(context.Background(), &session.Snapshot{
		ID: "shuffled",
		Messages: []session.Message{
			{ID: 5, Role: session.RoleUser, Content: "b"},
			{ID: 2, Role: session.RoleAssistant, Content: "a"},
		},
	}))

	h := session.NewHistory("shuffled", store)
	defer h.Close()

	log := h.Initialize(context.Background())
	require.Len(t, log, 1)
	assert.Equal(t, session.SeedGreeting, log[0].Content)
}

func TestHistory_InitializeUnreadableStore(t *testing.T) {
	h := session.NewHistory("denied", &failingStore{})
	defer h.Close()

	log := h.Initialize(context.Background())
	require.Len(t, log, 1)
}

func TestHistory_AppendPreservesOrder(t *testing.T) {
	h := session.NewHistory("order", drivers.NewInMemoryStore())
	defer h.Close()
	h.Initialize(context.Background())

	var log []session.Message
	for i := 0; i < 50; i++ {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		log = h.Append(session.Message{Role: role, Content: fmt.Sprintf("msg-%d", i)})
	}

	require.Len(t, log, 51)
	for i, m := range log[1:] {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), m.Content)
	}
	for i := 1; i < len(log); i++ {
		assert.Greater(t, log[i].ID, log[i-1].ID)
	}
	assert.Equal(t, log, h.Messages())
}

func TestHistory_AppendReturnsIndependentCopy(t *testing.T) {
	h := session.NewHistory("copy", drivers.NewInMemoryStore())
	defer h.Close()

	passages := []string{"p1"}
	log := h.Append(session.Message{Role: session.RoleAssistant, Content: "x", RetrievedPassages: passages})
	passages[0] = "changed"
	log[0].Content = "changed"

	current := h.Messages()
	assert.Equal(t, session.SeedGreeting, current[0].Content)
	assert.Equal(t, []string{"p1"}, current[1].RetrievedPassages)
}

func TestHistory_PersistsAcrossReload(t *testing.T) {
	store := drivers.NewInMemoryStore()
	ctx := context.Background()

	first := session.NewHistory("reload", store)
	first.Initialize(ctx)
	first.Append(session.Message{Role: session.RoleUser, Content: "what is X?"})
	written := first.Append(session.Message{Role: session.RoleAssistant, Content: "X", RetrievedPassages: []string{"p1", "p2"}})
	require.NoError(t, first.Close())

	second := session.NewHistory("reload", store)
	defer second.Close()
	restored := second.Initialize(ctx)
	assert.Equal(t, written, restored)

	// ids keep increasing after a reload
	next := second.Append(session.Message{Role: session.RoleUser, Content: "again"})
	assert.Equal(t, restored[len(restored)-1].ID+1, next[len(next)-1].ID)

	third := session.NewHistory("reload", store)
	defer third.Close()
	require.NoError(t, second.Close())
	assert.Len(t, third.Initialize(ctx), 4)
}

func TestHistory_PersistenceFailureIsSwallowed(t *testing.T) {
	store := &failingStore{}
	h := session.NewHistory("failing", store)

	h.Initialize(context.Background())
	log := h.Append(session.Message{Role: session.RoleUser, Content: "still works"})
	require.Len(t, log, 2)
	require.NoError(t, h.Close())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.GreaterOrEqual(t, store.writes, 1)
}

func TestHistory_RecoversFromExternalDelete(t *testing.T) {
	store := drivers.NewInMemoryStore()
	ctx := context.Background()

	h := session.NewHistory("expired", store)
	h.Initialize(ctx)
	h.Append(session.Message{Role: session.RoleUser, Content: "one"})
	require.NoError(t, h.Close())

	// simulate expiry between two writes of a restored session
	h2 := session.NewHistory("expired", store)
	h2.Initialize(ctx)
	require.NoError(t, store.Delete(ctx, "expired"))
	h2.Append(session.Message{Role: session.RoleAssistant, Content: "two"})
	require.NoError(t, h2.Close())

	snap, err := store.Get(ctx, "expired")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Messages, 3)
}

func TestHistory_ReconcilesVersionConflict(t *testing.T) {
	store := drivers.NewInMemoryStore()
	ctx := context.Background()

	h := session.NewHistory("conflict", store)
	h.Initialize(ctx)
	h.Append(session.Message{Role: session.RoleUser, Content: "one"})
	require.NoError(t, h.Close())

	h2 := session.NewHistory("conflict", store)
	h2.Initialize(ctx)

	// another writer bumps the stored version
	other, err := store.Get(ctx, "conflict")
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, other))

	h2.Append(session.Message{Role: session.RoleAssistant, Content: "two"})
	require.NoError(t, h2.Close())

	snap, err := store.Get(ctx, "conflict")
	require.NoError(t, err)
	assert.Len(t, snap.Messages, 3)
	assert.Equal(t, int64(3), snap.Version)
}

func TestHistory_End(t *testing.T) {
	store := drivers.NewInMemoryStore()
	ctx := context.Background()

	h := session.NewHistory("ending", store)
	h.Initialize(ctx)
	h.Append(session.Message{Role: session.RoleUser, Content: "bye"})
	require.NoError(t, h.End(ctx))

	snap, err := store.Get(ctx, "ending")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestHistory_CustomSeed(t *testing.T) {
	seed := session.Message{ID: 1, Role: session.RoleAssistant, Content: "Hi"}
	h := session.NewHistory("seeded", drivers.NewInMemoryStore(), session.WithSeed(seed))
	defer h.Close()

	assert.Equal(t, []session.Message{seed}, h.Initialize(context.Background()))
}
