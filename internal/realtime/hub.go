// Package realtime pushes change signals to open dashboard pages over
// websockets so their mounted views refetch.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"committeeDashboard/internal/events"
)

// Message types sent to browsers.
const (
	TypeConnected = "connected"
	TypeRefetch   = "refetch"
	TypeSession   = "session"
	TypeWatching  = "watching"
	TypeError     = "error"
)

// Message is an outbound frame.
type Message struct {
	Type     string   `json:"type"`
	Entity   string   `json:"entity,omitempty"`
	Action   string   `json:"action,omitempty"`
	Entities []string `json:"entities,omitempty"`
	Origin   string   `json:"origin,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Hub tracks open connections, grouped by user and by the entities each
// page watches. A user may have several tabs open.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Connection
	byUser   map[string]map[string]*Connection
	watchers map[string]map[string]*Connection
	watching map[string]map[string]struct{}
	logger   *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:    make(map[string]*Connection),
		byUser:   make(map[string]map[string]*Connection),
		watchers: make(map[string]map[string]*Connection),
		watching: make(map[string]map[string]struct{}),
		logger:   logger,
	}
}

// Attach registers conn and starts its write loop.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.conns[conn.ID] = conn
	tabs := h.byUser[conn.UserID]
	if tabs == nil {
		tabs = make(map[string]*Connection)
		h.byUser[conn.UserID] = tabs
	}
	tabs[conn.ID] = conn
	h.watching[conn.ID] = make(map[string]struct{})
	h.mu.Unlock()

	conn.Start()
}

// Detach forgets conn.
func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[conn.ID]; !ok {
		return
	}
	delete(h.conns, conn.ID)
	if tabs := h.byUser[conn.UserID]; tabs != nil {
		delete(tabs, conn.ID)
		if len(tabs) == 0 {
			delete(h.byUser, conn.UserID)
		}
	}
	for entity := range h.watching[conn.ID] {
		h.unwatchLocked(entity, conn.ID)
	}
	delete(h.watching, conn.ID)
}

// Watch subscribes conn to refetch signals of entities.
func (h *Hub) Watch(conn *Connection, entities ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.watching[conn.ID]
	if !ok {
		return
	}
	for _, e := range entities {
		room := h.watchers[e]
		if room == nil {
			room = make(map[string]*Connection)
			h.watchers[e] = room
		}
		room[conn.ID] = conn
		set[e] = struct{}{}
	}
}

// Unwatch drops entities from conn's subscriptions.
func (h *Hub) Unwatch(conn *Connection, entities ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range entities {
		h.unwatchLocked(e, conn.ID)
	}
}

func (h *Hub) unwatchLocked(entity, connID string) {
	if room := h.watchers[entity]; room != nil {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.watchers, entity)
		}
	}
	if set := h.watching[connID]; set != nil {
		delete(set, entity)
	}
}

// Broadcast sends msg to every connection watching entity.
func (h *Hub) Broadcast(entity string, msg Message) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0
	}
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.watchers[entity]))
	for _, c := range h.watchers[entity] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	return deliver(targets, payload)
}

// NotifyUser sends msg to every tab of userID.
func (h *Hub) NotifyUser(userID string, msg Message) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0
	}
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.byUser[userID]))
	for _, c := range h.byUser[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	return deliver(targets, payload)
}

func deliver(targets []*Connection, payload []byte) int {
	n := 0
	for _, c := range targets {
		if c.Send(payload) == nil {
			n++
		}
	}
	return n
}

// HandleEvent turns a change event into browser signals: session changes
// go to the actor's tabs, data changes to the pages watching the entity.
func (h *Hub) HandleEvent(_ context.Context, e events.Event) {
	if e.Entity == events.EntitySession {
		if e.ActorID != "" {
			h.NotifyUser(e.ActorID, Message{Type: TypeSession, Action: e.Action})
		}
		return
	}
	n := h.Broadcast(e.Entity, Message{Type: TypeRefetch, Entity: e.Entity, Action: e.Action, Origin: e.Origin})
	h.logger.Debug("refetch signalled", "entity", e.Entity, "connections", n)
}

// Count is the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close terminates every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Connection)
	h.byUser = make(map[string]map[string]*Connection)
	h.watchers = make(map[string]map[string]*Connection)
	h.watching = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.CloseGoingAway, "server shutdown")
	}
}
