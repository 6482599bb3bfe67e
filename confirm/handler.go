// Package confirm implements the one-shot yes/no handshake between the
// planning loop and whoever can answer it (a CLI prompt, a desktop UI).
package confirm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultTimeout is how long a request waits before resolving as declined.
const DefaultTimeout = 120 * time.Second

// ErrAlreadyResolved is returned by Resolve after the first resolution.
var ErrAlreadyResolved = errors.New("confirmation already resolved")

// Outcome is the terminal state of a handler.
type Outcome string

const (
	Confirmed Outcome = "confirmed"
	Declined  Outcome = "declined"
	TimedOut  Outcome = "timed_out"
)

// Approved reports whether the plan may run. Timeouts count as declined.
func (o Outcome) Approved() bool { return o == Confirmed }

// Handler is a single-use rendezvous: Wait blocks until Resolve, the
// timeout or ctx, whichever comes first. It is not reusable.
type Handler struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
	timeout time.Duration
}

func NewHandler(timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Handler{done: make(chan struct{}), timeout: timeout}
}

// Resolve records the user's answer. Only the first call wins.
func (h *Handler) Resolve(confirmed bool) error {
	o := Declined
	if confirmed {
		o = Confirmed
	}
	if !h.finish(o) {
		return ErrAlreadyResolved
	}
	return nil
}

func (h *Handler) finish(o Outcome) bool {
	won := false
	h.once.Do(func() {
		h.outcome = o
		won = true
		close(h.done)
	})
	return won
}

// Wait blocks for the answer.
func (h *Handler) Wait(ctx context.Context) Outcome {
	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case <-h.done:
	case <-timer.C:
		h.finish(TimedOut)
	case <-ctx.Done():
		h.finish(Declined)
	}
	return h.Outcome()
}

// Done is closed once the handler is resolved.
func (h *Handler) Done() <-chan struct{} { return h.done }

// Outcome returns the resolution, or "" while still waiting.
func (h *Handler) Outcome() Outcome {
	select {
	case <-h.done:
		return h.outcome
	default:
		return ""
	}
}
