package conversation

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/creastat/feedback-assistant/session"
	"github.com/creastat/feedback-assistant/session/drivers"
	"github.com/creastat/feedback-assistant/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gatedQuerier blocks every query until released or cancelled.
type gatedQuerier struct {
	resp *transport.QueryResponse
	err  error

	started chan transport.QueryRequest
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func newGatedQuerier(resp *transport.QueryResponse, err error) *gatedQuerier {
	return &gatedQuerier{
		resp:    resp,
		err:     err,
		started: make(chan transport.QueryRequest, 8),
		release: make(chan struct{}),
	}
}

func (q *gatedQuerier) Query(ctx context.Context, req transport.QueryRequest) (*transport.QueryResponse, error) {
	q.mu.Lock()
	q.calls++
	q.mu.Unlock()
	q.started <- req

	select {
	case <-q.release:
		return q.resp, q.err
	case <-ctx.Done():
		return nil, &transport.Error{Op: "query", Kind: transport.KindNetwork, Err: ctx.Err()}
	}
}

func (q *gatedQuerier) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

func newHistory(t *testing.T) *session.History {
	t.Helper()
	h := session.NewHistory("test", drivers.NewInMemoryStore())
	h.Initialize(context.Background())
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestSubmit_EmptyIsNoop(t *testing.T) {
	h := newHistory(t)
	q := newGatedQuerier(nil, nil)
	c := New(h, q)
	defer c.Close()

	assert.False(t, c.Submit(""))
	assert.False(t, c.Submit("   \t\n"))

	c.SetInput("  ")
	assert.False(t, c.SubmitInput())
	assert.Equal(t, "  ", c.Input())

	assert.Len(t, h.Messages(), 1)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, q.Calls())
}

func TestSubmit_Success(t *testing.T) {
	h := newHistory(t)
	q := newGatedQuerier(&transport.QueryResponse{Answer: "X", RetrievedDocuments: []string{"p1", "p2"}}, nil)
	c := New(h, q)
	defer c.Close()

	c.SetInput("  what is X?  ")
	require.True(t, c.SubmitInput())

	req := <-q.started
	assert.Equal(t, "what is X?", req.Question)
	assert.Equal(t, transport.FilterAll, req.SourceFilter)

	snap := c.Snapshot()
	assert.Equal(t, StateSubmitting, snap.State)
	assert.Equal(t, "", snap.Input)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, session.RoleUser, snap.Messages[1].Role)
	assert.Equal(t, "what is X?", snap.Messages[1].Content)

	close(q.release)
	c.Wait()

	log := c.Messages()
	require.Len(t, log, 3)
	last := log[2]
	assert.Equal(t, session.RoleAssistant, last.Role)
	assert.Equal(t, "X", last.Content)
	assert.Equal(t, []string{"p1", "p2"}, last.RetrievedPassages)
	assert.Equal(t, StateIdle, c.State())
	assert.NoError(t, c.LastError())

	select {
	case <-c.Changes():
	case <-time.After(time.Second):
		t.Fatal("no change notification after resolution")
	}
}

func TestSubmit_NoPassagesIsEmpty(t *testing.T) {
	h := newHistory(t)
	q := newGatedQuerier(&transport.QueryResponse{Answer: "nothing"}, nil)
	c := New(h, q)
	defer c.Close()

	close(q.release)
	require.True(t, c.Submit("q"))
	c.Wait()

	last := c.Messages()[2]
	assert.NotNil(t, last.RetrievedPassages)
	assert.Empty(t, last.RetrievedPassages)
}

func TestSubmit_Failure(t *testing.T) {
	failures := map[string]error{
		"network":   &transport.Error{Op: "query", Kind: transport.KindNetwork, Err: errors.New("connection refused")},
		"server":    &transport.Error{Op: "query", Kind: transport.KindServer, StatusCode: 500, Message: "boom"},
		"malformed": &transport.Error{Op: "query", Kind: transport.KindMalformed, Err: errors.New("no answer")},
	}

	for name, failure := range failures {
		t.Run(name, func(t *testing.T) {
			h := newHistory(t)
			q := newGatedQuerier(nil, failure)
			c := New(h, q)
			defer c.Close()

			close(q.release)
			require.True(t, c.Submit("why?"))
			c.Wait()

			log := c.Messages()
			require.Len(t, log, 3)
			assert.Equal(t, session.RoleAssistant, log[2].Role)
			assert.Equal(t, Apology, log[2].Content)
			assert.Empty(t, log[2].RetrievedPassages)
			assert.Equal(t, StateIdle, c.State())
			assert.ErrorIs(t, c.LastError(), failure)
		})
	}
}

func TestSubmit_Timeout(t *testing.T) {
	h := newHistory(t)
	q := newGatedQuerier(nil, nil)
	c := New(h, q, WithTimeout(20*time.Millisecond))
	defer c.Close()

	require.True(t, c.Submit("slow?"))
	c.Wait()

	log := c.Messages()
	require.Len(t, log, 3)
	assert.Equal(t, Apology, log[2].Content)
	assert.ErrorIs(t, c.LastError(), context.DeadlineExceeded)
	assert.Equal(t, StateIdle, c.State())
}

func TestSubmit_RejectedWhileSubmitting(t *testing.T) {
	h := newHistory(t)
	q := newGatedQuerier(&transport.QueryResponse{Answer: "A"}, nil)
	c := New(h, q)
	defer c.Close()

	require.True(t, c.Submit("first"))
	<-q.started

	c.SetInput("second")
	assert.False(t, c.Submit("second"))
	assert.False(t, c.SubmitInput())
	assert.Equal(t, "second", c.Input())
	assert.Len(t, h.Messages(), 2)

	close(q.release)
	c.Wait()

	assert.Equal(t, 1, q.Calls())
	assert.Len(t, h.Messages(), 3)
}

func TestSetSourceFilter_DoesNotAffectInFlight(t *testing.T) {
	h := newHistory(t)
	q := newGatedQuerier(&transport.QueryResponse{Answer: "A"}, nil)
	c := New(h, q, WithSourceFilter(transport.FilterReport))
	defer c.Close()

	require.True(t, c.Submit("first"))
	first := <-q.started
	c.SetSourceFilter(transport.FilterAll)
	assert.Equal(t, transport.FilterAll, c.SourceFilter())

	close(q.release)
	c.Wait()

	require.True(t, c.Submit("second"))
	second := <-q.started
	c.Wait()

	assert.Equal(t, transport.FilterReport, first.SourceFilter)
	assert.Equal(t, transport.FilterAll, second.SourceFilter)
}

func TestClose_CancelsInFlight(t *testing.T) {
	h := newHistory(t)
	q := newGatedQuerier(&transport.QueryResponse{Answer: "late"}, nil)
	c := New(h, q)

	require.True(t, c.Submit("q"))
	<-q.started

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, StateIdle, c.State())
	assert.Len(t, h.Messages(), 2)
	assert.False(t, c.Submit("after close"))

	_, ok := <-c.Changes()
	assert.False(t, ok)
}

func TestChanges_Coalesce(t *testing.T) {
	h := newHistory(t)
	q := newGatedQuerier(&transport.QueryResponse{Answer: "A"}, nil)
	close(q.release)
	c := New(h, q)
	defer c.Close()

	for i := 0; i < 3; i++ {
		require.True(t, c.Submit("q"))
		c.Wait()
	}

	<-c.Changes()
	select {
	case <-c.Changes():
		t.Fatal("notifications should coalesce")
	default:
	}
	assert.Len(t, h.Messages(), 7)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "submitting", StateSubmitting.String())
}

// instantQuerier answers immediately.
type instantQuerier struct{}

func (instantQuerier) Query(ctx context.Context, req transport.QueryRequest) (*transport.QueryResponse, error) {
	return &transport.QueryResponse{Answer: "A"}, nil
}

// memLog is a Log without persistence.
type memLog struct {
	mu       sync.Mutex
	messages []session.Message
}

func (l *memLog) Append(msg session.Message) []session.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg.ID = int64(len(l.messages) + 1)
	l.messages = append(l.messages, msg)
	return session.CloneMessages(l.messages)
}

func (l *memLog) Messages() []session.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return session.CloneMessages(l.messages)
}

func TestClose_RacesResolution(t *testing.T) {
	for i := 0; i < 200; i++ {
		c := New(&memLog{}, instantQuerier{})
		require.True(t, c.Submit("q"))
		for c.State() == StateSubmitting {
			runtime.Gosched()
		}
		require.NotPanics(t, func() { _ = c.Close() })

		for range c.Changes() {
		}
	}
}
