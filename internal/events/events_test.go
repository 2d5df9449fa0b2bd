package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"committeeDashboard/internal/mutation"
	"committeeDashboard/internal/viewmodel"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func TestLocalBusDeliversUntilUnsubscribed(t *testing.T) {
	bus := NewLocalBus()
	var a, b recorder
	unsubA, err := bus.Subscribe(a.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(b.handle)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, Event{Entity: "meetings", Action: "create", ID: "m1"}))
	unsubA()
	require.NoError(t, bus.Publish(ctx, Event{Entity: "documents", Action: "create"}))

	require.Len(t, a.events, 1)
	assert.Equal(t, "m1", a.events[0].ID)
	assert.False(t, a.events[0].At.IsZero())
	assert.Len(t, b.events, 2)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Publish(ctx, Event{Entity: "meetings"}))
	assert.Len(t, b.events, 2)
}

func TestObserverPublishesChanges(t *testing.T) {
	bus := NewLocalBus()
	var rec recorder
	_, _ = bus.Subscribe(rec.handle)

	Observer(bus, nil).Committed(context.Background(), mutation.Change{Entity: "committees", Action: "create", ID: "c1", ActorID: "u1", Origin: "tok-1"})

	require.Len(t, rec.events, 1)
	e := rec.events[0]
	assert.Equal(t, "committees", e.Entity)
	assert.Equal(t, "create", e.Action)
	assert.Equal(t, "c1", e.ID)
	assert.Equal(t, "u1", e.ActorID)
	assert.Equal(t, "tok-1", e.Origin)
}

func TestInvalidatorDropsEntityKeys(t *testing.T) {
	cache := viewmodel.NewLocalCache(time.Minute)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "k1", []byte("x"), 0, []string{"meetings", "profiles"}))
	require.NoError(t, cache.Set(ctx, "k2", []byte("y"), 0, []string{"documents"}))

	h := Invalidator(cache, nil)
	h(ctx, Event{Entity: EntitySession, Action: ActionSignedIn})
	_, err := cache.Get(ctx, "k1")
	assert.NoError(t, err)

	h(ctx, Event{Entity: "meetings", Action: "update"})
	_, err = cache.Get(ctx, "k1")
	assert.ErrorIs(t, err, viewmodel.ErrMiss)
	_, err = cache.Get(ctx, "k2")
	assert.NoError(t, err)
}

func TestWireEncoding(t *testing.T) {
	at := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	data, err := Encode(Event{Entity: "action_items", Action: "update", ID: "a1", ActorID: "u1", Origin: "tok-1", At: at})
	require.NoError(t, err)

	e, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "action_items", e.Entity)
	assert.Equal(t, "tok-1", e.Origin)
	assert.True(t, at.Equal(e.At))

	_, err = Decode([]byte{0xc1})
	assert.Error(t, err)

	assert.Equal(t, "dashboard.events.action_items", Subject("action_items"))
	assert.Equal(t, "dashboard.events.a_b", Subject("a.b"))
}
