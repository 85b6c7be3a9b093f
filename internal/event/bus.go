// Package event provides the in-process feed of project lifecycle
// notifications. Publishing is synchronous; a failing or panicking
// subscriber never blocks the publisher or its peers.
package event

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/appdraft/project-engine/internal/models"
)

// subscriberBuffer is the channel capacity of a channel subscription.
// A receiver that falls further behind loses events instead of blocking
// the publisher.
const subscriberBuffer = 64

// Handler consumes one event. Errors are logged, never propagated to the
// operation that triggered the event.
type Handler func(models.Event) error

type subscriber struct {
	id      int
	types   map[models.EventType]struct{} // empty matches everything
	handler Handler

	mu     sync.Mutex // guards ch against send-after-close
	ch     chan models.Event
	closed bool
}

// send delivers without blocking. Reports false when the buffer is full
// or the subscription is already cancelled.
func (s *subscriber) send(ev models.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *subscriber) matches(t models.EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Bus is the in-process pub/sub hub.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	logger zerolog.Logger

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

// Stats is a point-in-time view of bus counters.
type Stats struct {
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
	Panics      uint64 `json:"panics"`
	Subscribers int    `json:"subscribers"`
}

// NewBus creates an event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]*subscriber),
		logger: logger.With().Str("component", "eventbus").Logger(),
	}
}

// New constructs an event with a fresh id and current timestamp.
func New(t models.EventType, projectID, actor string, payload map[string]string) models.Event {
	return models.Event{
		ID:        uuid.NewString(),
		Type:      t,
		ProjectID: projectID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Subscribe returns a buffered channel of matching events and a cancel
// function. With no types given, every event matches. Cancel closes the
// channel.
func (b *Bus) Subscribe(types ...models.EventType) (<-chan models.Event, func()) {
	sub := &subscriber{
		types: typeSet(types),
		ch:    make(chan models.Event, subscriberBuffer),
	}
	b.add(sub)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.remove(sub.id)
			sub.close()
		})
	}
	return sub.ch, cancel
}

// SubscribeFunc registers a handler for matching events and returns a
// cancel function. The handler runs on the publisher's goroutine.
func (b *Bus) SubscribeFunc(h Handler, types ...models.EventType) func() {
	sub := &subscriber{
		types:   typeSet(types),
		handler: h,
	}
	b.add(sub)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub.id) })
	}
}

// Publish delivers the event to every matching subscriber. Handler errors
// and panics are aggregated and logged; channel subscribers that cannot
// keep up lose the event.
func (b *Bus) Publish(ev models.Event) {
	b.published.Add(1)

	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.matches(ev.Type) {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	var errs error
	for _, s := range subs {
		if s.handler != nil {
			if err := b.invoke(s.handler, ev); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			b.delivered.Add(1)
			continue
		}

		if s.send(ev) {
			b.delivered.Add(1)
		} else {
			b.dropped.Add(1)
			b.logger.Warn().
				Str("event_type", string(ev.Type)).
				Str("project_id", ev.ProjectID).
				Int("subscriber", s.id).
				Msg("Subscriber behind, event dropped")
		}
	}

	if errs != nil {
		b.logger.Error().
			Err(errs).
			Str("event_type", string(ev.Type)).
			Str("project_id", ev.ProjectID).
			Msg("Subscriber errors")
	}
}

// Stats returns current counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return Stats{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
		Panics:      b.panics.Load(),
		Subscribers: n,
	}
}

func (b *Bus) invoke(h Handler, ev models.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ev)
}

func (b *Bus) add(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s.id = b.nextID
	b.subs[s.id] = s
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

func typeSet(types []models.EventType) map[models.EventType]struct{} {
	if len(types) == 0 {
		return nil
	}
	set := make(map[models.EventType]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}
