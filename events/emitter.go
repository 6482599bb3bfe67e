// Package events carries status updates out of the planning loop to the
// CLI, the HTTP bridge and metrics. Observers must not block.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventObserver consumes events.
type EventObserver interface {
	OnEvent(event *Event)
}

// ObserverFunc adapts a function to EventObserver.
type ObserverFunc func(event *Event)

func (f ObserverFunc) OnEvent(event *Event) { f(event) }

// EventEmitter fans events out to observers.
type EventEmitter struct {
	mu        sync.RWMutex
	observers []EventObserver
	now       func() time.Time
}

func NewEventEmitter() *EventEmitter {
	return &EventEmitter{now: time.Now}
}

// AddObserver registers an observer.
func (e *EventEmitter) AddObserver(observer EventObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, observer)
}

// Episode scopes events to one Think call.
type Episode struct {
	emitter *EventEmitter
	root    *Event
}

// StartEpisode emits the root event of an episode.
func (e *EventEmitter) StartEpisode(episodeID, goal string, data *EpisodeStartEvent) *Episode {
	if episodeID == "" {
		episodeID = uuid.NewString()
	}
	root := &Event{
		Type:           EpisodeStart,
		Timestamp:      e.now(),
		SpanID:         episodeID,
		Data:           data,
		HierarchyLevel: 0,
		EpisodeID:      episodeID,
		Component:      "agent",
		Goal:           goal,
	}
	e.Emit(root)
	return &Episode{emitter: e, root: root}
}

// ID is the episode id.
func (ep *Episode) ID() string { return ep.root.EpisodeID }

// Emit sends a child event of the episode.
func (ep *Episode) Emit(data EventData) {
	if ep == nil || ep.emitter == nil {
		return
	}
	t := data.GetEventType()
	ep.emitter.Emit(&Event{
		Type:           t,
		Timestamp:      ep.emitter.now(),
		SpanID:         uuid.NewString(),
		ParentID:       ep.root.SpanID,
		Data:           data,
		HierarchyLevel: 1,
		EpisodeID:      ep.root.EpisodeID,
		Component:      GetComponentFromEventType(t),
		Goal:           ep.root.Goal,
	})
}

// Emit sends event to every observer. The observer list is copied so an
// observer may register others without deadlocking.
func (e *EventEmitter) Emit(event *Event) {
	e.mu.RLock()
	observers := append([]EventObserver(nil), e.observers...)
	e.mu.RUnlock()

	for _, observer := range observers {
		observer.OnEvent(event)
	}
}

// Recorder keeps the most recent events, for status polling.
type Recorder struct {
	mu     sync.Mutex
	events []*Event
	limit  int
}

func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 100
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) OnEvent(event *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if over := len(r.events) - r.limit; over > 0 {
		r.events = append([]*Event(nil), r.events[over:]...)
	}
}

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

// Since returns events recorded strictly after t.
func (r *Recorder) Since(t time.Time) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Event
	for _, ev := range r.events {
		if ev.Timestamp.After(t) {
			out = append(out, ev)
		}
	}
	return out
}
