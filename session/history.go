package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultIOTimeout = 2 * time.Second

// HistoryOption is a functional option for configuring a History.
type HistoryOption func(*History)

// WithLogger sets the logger used to report swallowed persistence failures.
func WithLogger(logger *zap.Logger) HistoryOption {
	return func(h *History) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithIOTimeout bounds every snapshot read and write.
func WithIOTimeout(d time.Duration) HistoryOption {
	return func(h *History) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithSeed replaces the default greeting used when no prior state exists.
func WithSeed(seed Message) HistoryOption {
	return func(h *History) {
		h.seed = seed
	}
}

// History owns the ordered conversation log of one session and hides its persistence.
// The log is append-only; every mutation schedules a whole-log snapshot write that
// runs on a single writer goroutine and never blocks or fails the caller.
type History struct {
	id      string
	store   Store
	logger  *zap.Logger
	timeout time.Duration
	seed    Message

	mu       sync.Mutex
	messages []Message
	nextID   int64

	pendingMu sync.Mutex
	pending   []Message
	wake      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// persistMu guards what the writer knows about the stored snapshot.
	persistMu sync.Mutex
	version   int64
	createdAt time.Time
}

// NewHistory creates the History of session id backed by store.
// The log starts out holding only the seed message until Initialize is called.
// Close must be called to stop the writer goroutine.
func NewHistory(id string, store Store, opts ...HistoryOption) *History {
	h := &History{
		id:      id,
		store:   store,
		logger:  zap.NewNop(),
		timeout: defaultIOTimeout,
		seed:    SeedMessage(),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(zap.String("session_id", id))
	h.reset([]Message{h.seed})

	go h.run()
	return h
}

// ID returns the session identifier.
func (h *History) ID() string {
	return h.id
}

// Initialize loads the persisted snapshot, falling back to the seed message when the
// snapshot is absent, unreadable, empty, or out of order. It never fails.
func (h *History) Initialize(ctx context.Context) []Message {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	messages := h.load(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.reset(messages)
	return CloneMessages(h.messages)
}

func (h *History) load(ctx context.Context) []Message {
	seed := []Message{h.seed}

	snap, err := h.store.Get(ctx, h.id)
	if err != nil {
		h.logger.Warn("could not read session snapshot, starting fresh", zap.Error(err))
		return seed
	}
	if snap == nil {
		h.logger.Debug("no session snapshot, starting fresh")
		return seed
	}

	h.persistMu.Lock()
	h.version = snap.Version
	h.createdAt = snap.CreatedAt
	h.persistMu.Unlock()

	if len(snap.Messages) == 0 {
		return seed
	}
	if err := ValidateLog(snap.Messages); err != nil {
		h.logger.Warn("discarding invalid session snapshot", zap.Error(err))
		return seed
	}

	h.logger.Debug("restored session snapshot",
		zap.Int("messages", len(snap.Messages)),
		zap.Int64("version", snap.Version))
	return CloneMessages(snap.Messages)
}

// reset must be called with mu held (or before the History is shared).
func (h *History) reset(messages []Message) {
	h.messages = messages
	h.nextID = messages[len(messages)-1].ID + 1
}

// Append stamps msg with the next sequence ID, adds it to the end of the log and
// returns a copy of the updated log. Persistence happens in the background.
func (h *History) Append(msg Message) []Message {
	h.mu.Lock()
	msg.ID = h.nextID
	h.nextID++
	if msg.RetrievedPassages != nil {
		msg.RetrievedPassages = append([]string{}, msg.RetrievedPassages...)
	}

	next := make([]Message, len(h.messages), len(h.messages)+1)
	copy(next, h.messages)
	h.messages = append(next, msg)
	out := CloneMessages(h.messages)
	h.mu.Unlock()

	h.schedule(out)
	return out
}

// Messages returns a copy of the current log.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return CloneMessages(h.messages)
}

// Close flushes any pending snapshot write and stops the writer.
func (h *History) Close() error {
	h.closeOnce.Do(func() { close(h.quit) })
	<-h.done
	return nil
}

// End closes the History and discards the persisted snapshot.
func (h *History) End(ctx context.Context) error {
	if err := h.Close(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.store.Delete(ctx, h.id); err != nil {
		return fmt.Errorf("failed to discard session %s: %w", h.id, err)
	}
	return nil
}

func (h *History) schedule(messages []Message) {
	select {
	case <-h.done:
		h.logger.Debug("history closed, snapshot not persisted", zap.Int("messages", len(messages)))
		return
	default:
	}

	h.pendingMu.Lock()
	h.pending = messages
	h.pendingMu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *History) run() {
	defer close(h.done)
	for {
		select {
		case <-h.wake:
			h.flushPending()
		case <-h.quit:
			h.flushPending()
			return
		}
	}
}

func (h *History) flushPending() {
	h.pendingMu.Lock()
	messages := h.pending
	h.pending = nil
	h.pendingMu.Unlock()

	if messages == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.persist(ctx, messages); err != nil {
		h.logger.Warn("failed to persist session snapshot",
			zap.Int("messages", len(messages)),
			zap.Error(err))
	}
}

func (h *History) persist(ctx context.Context, messages []Message) error {
	h.persistMu.Lock()
	defer h.persistMu.Unlock()

	snap := &Snapshot{
		ID:        h.id,
		CreatedAt: h.createdAt,
		Version:   h.version,
		Messages:  messages,
	}

	if h.version == 0 {
		return h.create(ctx, snap)
	}

	err := h.store.Update(ctx, snap)
	switch {
	case err == nil:
		h.version = snap.Version
		return nil
	case errors.Is(err, ErrNotFound):
		// expired or discarded underneath us
		return h.create(ctx, snap)
	case errors.Is(err, ErrVersionConflict):
		stored, getErr := h.store.Get(ctx, h.id)
		if getErr != nil || stored == nil {
			return h.create(ctx, snap)
		}
		snap.Version = stored.Version
		if err := h.store.Update(ctx, snap); err != nil {
			return fmt.Errorf("update after version reconcile: %w", err)
		}
		h.version = snap.Version
		return nil
	default:
		return err
	}
}

func (h *History) create(ctx context.Context, snap *Snapshot) error {
	if err := h.store.Create(ctx, snap); err != nil {
		return err
	}
	h.version = snap.Version
	h.createdAt = snap.CreatedAt
	return nil
}
