package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/creastat/feedback-assistant/session"
	"github.com/creastat/feedback-assistant/transport"
	"go.uber.org/zap"
)

// Apology is shown in place of an answer when a query fails for any reason.
const Apology = "Sorry, I encountered an error. Please ensure the backend is running and check the logs for details."

const defaultTimeout = 60 * time.Second

// State is the submission state of a Controller.
type State int

const (
	StateIdle State = iota
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// Querier answers questions. *transport.Client implements it.
type Querier interface {
	Query(ctx context.Context, req transport.QueryRequest) (*transport.QueryResponse, error)
}

// Log is the conversation log the controller appends to. *session.History implements it.
type Log interface {
	Append(msg session.Message) []session.Message
	Messages() []session.Message
}

// Snapshot is a consistent view of everything a presentation needs.
type Snapshot struct {
	Messages []session.Message
	State    State
	Input    string
	Filter   transport.SourceFilter
}

// Option is a functional option for configuring a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout bounds every query.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSourceFilter sets the initial source filter.
func WithSourceFilter(f transport.SourceFilter) Option {
	return func(c *Controller) {
		c.filter = f
	}
}

// Controller runs the submit/answer cycle against a Log and a Querier.
// At most one query is in flight at a time.
type Controller struct {
	log     Log
	querier Querier
	logger  *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	state    State
	input    string
	filter   transport.SourceFilter
	lastErr  error
	cancel   context.CancelFunc
	inflight chan struct{}
	closed   bool

	changes chan struct{}
}

// New creates a Controller.
func New(log Log, querier Querier, opts ...Option) *Controller {
	c := &Controller{
		log:     log,
		querier: querier,
		logger:  zap.NewNop(),
		timeout: defaultTimeout,
		filter:  transport.FilterAll,
		changes: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends question to the querier. It does nothing and returns false when the
// trimmed question is empty, a query is already in flight, or the controller is closed.
func (c *Controller) Submit(question string) bool {
	question = strings.TrimSpace(question)
	if question == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.state == StateSubmitting {
		return false
	}

	c.log.Append(session.Message{Role: session.RoleUser, Content: question})
	c.input = ""
	c.state = StateSubmitting

	req := transport.QueryRequest{Question: question, SourceFilter: c.filter}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	done := make(chan struct{})
	c.cancel = cancel
	c.inflight = done

	c.logger.Debug("submitting question",
		zap.Int("length", len(question)),
		zap.String("source_filter", string(req.SourceFilter)))

	go c.run(ctx, cancel, req, done)
	return true
}

// SubmitInput submits the current input buffer.
func (c *Controller) SubmitInput() bool {
	return c.Submit(c.Input())
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, req transport.QueryRequest, done chan struct{}) {
	defer close(done)

	start := time.Now()
	resp, err := c.querier.Query(ctx, req)
	cancel()

	c.mu.Lock()
	c.state = StateIdle
	c.cancel = nil
	c.inflight = nil

	switch {
	case c.closed:
		c.logger.Debug("query resolved after close, discarding", zap.Error(err))
	case err != nil:
		c.lastErr = err
		c.logger.Warn("query failed",
			zap.String("kind", string(errorKind(err))),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		c.log.Append(session.Message{Role: session.RoleAssistant, Content: Apology})
	default:
		c.lastErr = nil
		passages := resp.RetrievedDocuments
		if passages == nil {
			passages = []string{}
		}
		c.logger.Debug("query answered",
			zap.Int("passages", len(passages)),
			zap.Duration("elapsed", time.Since(start)))
		c.log.Append(session.Message{Role: session.RoleAssistant, Content: resp.Answer, RetrievedPassages: passages})
	}
	// notify never blocks, and Close only closes changes once closed is set
	if !c.closed {
		c.notify()
	}
	c.mu.Unlock()
}

func errorKind(err error) transport.Kind {
	if kind := transport.KindOf(err); kind != "" {
		return kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return transport.KindNetwork
	}
	return "unknown"
}

func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Changes delivers a signal whenever a query resolves. Signals coalesce.
// The channel is closed by Close.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// SetSourceFilter changes the filter used by the next submission.
func (c *Controller) SetSourceFilter(f transport.SourceFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
}

// SourceFilter returns the filter the next submission will use.
func (c *Controller) SourceFilter() transport.SourceFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// SetInput replaces the pending input buffer.
func (c *Controller) SetInput(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = s
}

// Input returns the pending input buffer.
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// State returns the current submission state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a copy of the conversation log.
func (c *Controller) Messages() []session.Message {
	return c.log.Messages()
}

// LastError returns the error of the most recent query, or nil if it succeeded.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns a consistent copy of the controller's state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Messages: c.log.Messages(),
		State:    c.state,
		Input:    c.input,
		Filter:   c.filter,
	}
}

// Wait blocks until no query is in flight.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.inflight
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close cancels any in-flight query and waits for it to resolve. A cancelled query
// appends nothing. Close is idempotent.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	done := c.inflight
	c.mu.Unlock()

	if done != nil {
		<-done
	}

	c.mu.Lock()
	close(c.changes)
	c.mu.Unlock()
	return nil
}
