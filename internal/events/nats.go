package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
)

// SubjectPrefix prefixes the subject of every event.
const SubjectPrefix = "dashboard.events"

// NATSBus publishes msgpack-encoded events on per-entity subjects so every
// dashboard process sees every change.
type NATSBus struct {
	conn   *nats.Conn
	logger *slog.Logger
}

var _ Bus = (*NATSBus)(nil)

// ConnectNATS dials url and returns a bus over the connection.
func ConnectNATS(url string, logger *slog.Logger) (*NATSBus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(
		url,
		nats.Name("committee-dashboard"),
		nats.DrainTimeout(10*time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				logger.With("error", err, "subject", s.Subject).Error("async NATS error")
			} else {
				logger.With("error", err).Error("async NATS error outside subscription")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}
	return &NATSBus{conn: conn, logger: logger}, nil
}

// Subject is the subject events of entity are published on.
func Subject(entity string) string {
	safe := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(entity)
	return SubjectPrefix + "." + safe
}

// Encode serializes e for the wire.
func Encode(e Event) ([]byte, error) {
	return msgpack.Marshal(e)
}

// Decode parses a wire event.
func Decode(data []byte) (Event, error) {
	var e Event
	err := msgpack.Unmarshal(data, &e)
	return e, err
}

// Publish sends e on its entity subject.
func (b *NATSBus) Publish(_ context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := Encode(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.conn.Publish(Subject(e.Entity), data); err != nil {
		return fmt.Errorf("publish %s: %w", Subject(e.Entity), err)
	}
	return nil
}

// Subscribe receives events of every entity.
func (b *NATSBus) Subscribe(h Handler) (func(), error) {
	sub, err := b.conn.Subscribe(SubjectPrefix+".>", func(msg *nats.Msg) {
		e, err := Decode(msg.Data)
		if err != nil {
			b.logger.With("error", err, "subject", msg.Subject).Warn("dropping undecodable event")
			return
		}
		h(context.Background(), e)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Ping reports whether the connection is up.
func (b *NATSBus) Ping(context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("nats: %s", b.conn.Status())
	}
	return nil
}

// Close drains the connection.
func (b *NATSBus) Close() error {
	return b.conn.Drain()
}
