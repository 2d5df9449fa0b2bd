// Package events carries change notifications between the mutation
// pipeline, the query cache and connected browsers.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"committeeDashboard/internal/mutation"
)

// EntitySession is the pseudo entity of sign-in and sign-out events.
const EntitySession = "session"

// Session actions.
const (
	ActionSignedIn  = "signed_in"
	ActionSignedOut = "signed_out"
)

// Event is one committed change. Origin names the view that already
// refreshed itself after the write.
type Event struct {
	Entity  string    `msgpack:"entity" json:"entity"`
	Action  string    `msgpack:"action" json:"action"`
	ID      string    `msgpack:"id" json:"id,omitempty"`
	ActorID string    `msgpack:"actor_id" json:"actor_id,omitempty"`
	Origin  string    `msgpack:"origin,omitempty" json:"origin,omitempty"`
	At      time.Time `msgpack:"at" json:"at"`
}

// Handler receives events.
type Handler func(ctx context.Context, e Event)

// Bus publishes events to every subscriber, including subscribers in other
// processes when the bus is distributed.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(h Handler) (unsubscribe func(), err error)
	Close() error
}

// LocalBus delivers events synchronously within the process.
type LocalBus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
}

var _ Bus = (*LocalBus)(nil)

// NewLocalBus creates an in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[int]Handler)}
}

// Publish calls every handler in turn.
func (b *LocalBus) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		hs = append(hs, h)
	}
	b.mu.RUnlock()
	for _, h := range hs {
		h(ctx, e)
	}
	return nil
}

// Subscribe registers h.
func (b *LocalBus) Subscribe(h Handler) (func(), error) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}, nil
}

// Close drops every handler.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.handlers = make(map[int]Handler)
	b.mu.Unlock()
	return nil
}

// Observer publishes every committed mutation to bus.
func Observer(bus Bus, logger *slog.Logger) mutation.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return mutation.ObserverFunc(func(ctx context.Context, c mutation.Change) {
		e := Event{Entity: c.Entity, Action: c.Action, ID: c.ID, ActorID: c.ActorID, Origin: c.Origin, At: time.Now().UTC()}
		if err := bus.Publish(ctx, e); err != nil {
			logger.With("error", err).Warn("publishing change event failed", "entity", c.Entity, "id", c.ID)
		}
	})
}
