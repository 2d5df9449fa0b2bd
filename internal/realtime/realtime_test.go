package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"committeeDashboard/internal/events"
)

func dial(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, userID)
	}))
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	assert.Equal(t, TypeConnected, read(t, ws).Type)
	return ws
}

func read(t *testing.T, ws *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func watch(t *testing.T, ws *websocket.Conn, entities ...string) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(map[string]any{"type": "watch", "entities": entities}))
	msg := read(t, ws)
	require.Equal(t, TypeWatching, msg.Type)
	assert.Equal(t, entities, msg.Entities)
}

func TestRefetchReachesWatchers(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	meetings := dial(t, hub, "u1")
	docs := dial(t, hub, "u2")
	watch(t, meetings, "meetings", "profiles")
	watch(t, docs, "documents")
	assert.Equal(t, 2, hub.Count())

	hub.HandleEvent(context.Background(), events.Event{Entity: "meetings", Action: "create"})
	msg := read(t, meetings)
	assert.Equal(t, Message{Type: TypeRefetch, Entity: "meetings", Action: "create"}, msg)

	hub.HandleEvent(context.Background(), events.Event{Entity: "documents", Action: "create"})
	assert.Equal(t, "documents", read(t, docs).Entity)

	assert.Equal(t, 0, hub.Broadcast("committees", Message{Type: TypeRefetch}))
}

func TestRefetchNamesOriginView(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	ws := dial(t, hub, "u1")
	watch(t, ws, "committees")

	hub.HandleEvent(context.Background(), events.Event{Entity: "committees", Action: "create", Origin: "tok-1"})
	assert.Equal(t, Message{Type: TypeRefetch, Entity: "committees", Action: "create", Origin: "tok-1"}, read(t, ws))
}

func TestSessionSignalGoesToEveryTabOfTheUser(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	tab1 := dial(t, hub, "u1")
	tab2 := dial(t, hub, "u1")
	other := dial(t, hub, "u2")
	watch(t, other, "meetings")

	hub.HandleEvent(context.Background(), events.Event{Entity: events.EntitySession, Action: events.ActionSignedOut, ActorID: "u1"})
	for _, ws := range []*websocket.Conn{tab1, tab2} {
		msg := read(t, ws)
		assert.Equal(t, TypeSession, msg.Type)
		assert.Equal(t, events.ActionSignedOut, msg.Action)
	}
	assert.Equal(t, 0, hub.NotifyUser("nobody", Message{Type: TypeSession}))
}

func TestUnknownFramesAreRejected(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	ws := dial(t, hub, "u1")
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("nope")))
	assert.Equal(t, "invalid payload", read(t, ws).Error)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "shout"}))
	assert.Equal(t, "unknown frame type", read(t, ws).Error)
}

func TestDetachOnDisconnect(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	ws := dial(t, hub, "u1")
	watch(t, ws, "meetings")
	require.NoError(t, ws.Close())

	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.Broadcast("meetings", Message{Type: TypeRefetch}))
}
