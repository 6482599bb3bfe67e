// Package monitor holds the background watchers started by `jarvis serve`:
// the pattern analyzer, the health monitor and the downloads watcher. Each
// owns a list of notices behind its own mutex and hands out copies. No lock
// is held across model or network calls.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrAlreadyRunning is returned by Start on a running watcher.
	ErrAlreadyRunning = errors.New("monitor already running")
	// ErrUnknownID is returned when acting on a notice that does not exist.
	ErrUnknownID = errors.New("no notice with that id")
)

// noticeList is a bounded, mutex-protected list of items with ids.
type noticeList[T any] struct {
	mu    sync.Mutex
	items []T
	max   int
	id    func(T) string
}

func newNoticeList[T any](max int, id func(T) string) *noticeList[T] {
	return &noticeList[T]{max: max, id: id}
}

// add appends item, keeping only the newest max entries.
func (l *noticeList[T]) add(item T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, item)
	if l.max > 0 && len(l.items) > l.max {
		l.items = append([]T(nil), l.items[len(l.items)-l.max:]...)
	}
}

func (l *noticeList[T]) list() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

func (l *noticeList[T]) has(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, it := range l.items {
		if l.id(it) == id {
			return true
		}
	}
	return false
}

// take removes and returns the item with id.
func (l *noticeList[T]) take(id string) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, it := range l.items {
		if l.id(it) == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return it, true
		}
	}
	var zero T
	return zero, false
}

// periodic runs fn once at start and then every interval until stopped.
type periodic struct {
	interval time.Duration
	fn       func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *periodic) start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done

	go func() {
		defer close(done)
		p.fn(ctx)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.fn(ctx)
			}
		}
	}()
	return nil
}

func (p *periodic) stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
