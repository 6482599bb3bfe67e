package confirm

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	loggerv2 "jarvis/logger/v2"
)

// ErrUnknownRequest is returned when resolving an id that is not pending.
var ErrUnknownRequest = errors.New("no pending confirmation with that id")

// Request describes a plan that needs the user's consent.
type Request struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Plan      string    `json:"plan"`
	Rationale string    `json:"rationale"`
	Notes     []string  `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Confirmer asks the user to approve a plan and blocks for the answer.
type Confirmer interface {
	Confirm(ctx context.Context, req Request) Outcome
}

// Func adapts a synchronous prompt to Confirmer.
type Func func(ctx context.Context, req Request) bool

func (f Func) Confirm(ctx context.Context, req Request) Outcome {
	if f(ctx, req) {
		return Confirmed
	}
	return Declined
}

// AutoDecline refuses everything; used when nobody can answer.
type AutoDecline struct{}

func (AutoDecline) Confirm(context.Context, Request) Outcome { return Declined }

type pending struct {
	req     Request
	handler *Handler
}

// Broker parks requests until a UI thread resolves them by id.
type Broker struct {
	mu       sync.Mutex
	pending  map[string]*pending
	timeout  time.Duration
	observer func(Request)
	logger   loggerv2.Logger
}

type BrokerOption func(*Broker)

func WithTimeout(d time.Duration) BrokerOption {
	return func(b *Broker) { b.timeout = d }
}

// WithObserver is called (outside the lock) whenever a request is parked.
func WithObserver(fn func(Request)) BrokerOption {
	return func(b *Broker) { b.observer = fn }
}

func WithLogger(l loggerv2.Logger) BrokerOption {
	return func(b *Broker) { b.logger = l }
}

func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		pending: make(map[string]*pending),
		timeout: DefaultTimeout,
		logger:  loggerv2.NewNoop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Confirm parks req and blocks until it is resolved or times out.
func (b *Broker) Confirm(ctx context.Context, req Request) Outcome {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	h := NewHandler(b.timeout)

	b.mu.Lock()
	b.pending[req.ID] = &pending{req: req, handler: h}
	observer := b.observer
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, req.ID)
		b.mu.Unlock()
	}()

	if observer != nil {
		observer(req)
	}
	b.logger.Info("Waiting for confirmation", loggerv2.String("id", req.ID), loggerv2.String("title", req.Title))

	out := h.Wait(ctx)
	b.logger.Info("Confirmation resolved", loggerv2.String("id", req.ID), loggerv2.String("outcome", string(out)))
	return out
}

// Resolve answers a pending request.
func (b *Broker) Resolve(id string, confirmed bool) error {
	b.mu.Lock()
	p, ok := b.pending[id]
	b.mu.Unlock()
	if !ok {
		return ErrUnknownRequest
	}
	return p.handler.Resolve(confirmed)
}

// Pending returns a snapshot of parked requests, oldest first.
func (b *Broker) Pending() []Request {
	b.mu.Lock()
	out := make([]Request, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p.req)
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

var (
	_ Confirmer = (*Broker)(nil)
	_ Confirmer = Func(nil)
	_ Confirmer = AutoDecline{}
)
