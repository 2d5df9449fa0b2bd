package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const readTimeout = 60 * time.Second

// Upgrader accepts same-origin websocket handshakes.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type inboundFrame struct {
	Type     string   `json:"type"`
	Entities []string `json:"entities"`
}

// Serve upgrades the request and runs the socket of userID until the
// client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	ws, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response
		h.logger.With("error", err).Debug("websocket upgrade failed")
		return
	}

	conn := NewConnection(userID, ws)
	h.Attach(conn)
	defer func() {
		h.Detach(conn)
		conn.Close(websocket.CloseNormalClosure, "session closed")
	}()

	ws.SetReadLimit(16 << 10)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	h.reply(conn, Message{Type: TypeConnected})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				h.logger.With("error", err).Debug("websocket read ended", "conn", conn.ID)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.reply(conn, Message{Type: TypeError, Error: "invalid payload"})
			continue
		}
		switch frame.Type {
		case "watch":
			h.Watch(conn, frame.Entities...)
			h.reply(conn, Message{Type: TypeWatching, Entities: frame.Entities})
		case "unwatch":
			h.Unwatch(conn, frame.Entities...)
		default:
			h.reply(conn, Message{Type: TypeError, Error: "unknown frame type"})
		}
	}
}

func (h *Hub) reply(conn *Connection, msg Message) {
	if payload, err := json.Marshal(msg); err == nil {
		_ = conn.Send(payload)
	}
}
