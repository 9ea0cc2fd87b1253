// Package relay mirrors room broadcasts between server instances over NATS.
//
// Every local broadcast is published as a JSON Envelope on one subject.
// Each instance subscribes to that subject and re-broadcasts envelopes from
// other instances into its own room of the same name, so receivers connected
// to any instance see every member's messages.  Envelopes carry the
// publishing instance's origin id; an instance ignores its own.
package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "roomchat.broadcast"

// Envelope is the wire form of one relayed broadcast.
type Envelope struct {
	Origin string `json:"origin"`
	Room   string `json:"room"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// DeliverFunc injects a remote broadcast into the local room.
type DeliverFunc func(room, sender, text string)

// Relay is a NATS-backed broadcast mirror.
type Relay struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	origin  string
	logger  *slog.Logger
}

// Connect dials the NATS server at url.
func Connect(url, subject string, logger *slog.Logger) (*Relay, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(
		url,
		nats.Name("roomchat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("relay: connect %s: %w", url, err)
	}
	r := newRelay(subject, logger)
	r.conn = conn
	return r, nil
}

func newRelay(subject string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	origin := uuid.NewString()
	return &Relay{
		subject: subject,
		origin:  origin,
		logger:  logger.With("component", "relay", "origin", origin),
	}
}

// Origin returns this instance's id.
func (r *Relay) Origin() string { return r.origin }

// Publish mirrors one local broadcast.
func (r *Relay) Publish(room, sender, text string) error {
	data, err := json.Marshal(Envelope{Origin: r.origin, Room: room, Sender: sender, Text: text})
	if err != nil {
		return fmt.Errorf("relay: encode: %w", err)
	}
	if err := r.conn.Publish(r.subject, data); err != nil {
		return fmt.Errorf("relay: publish: %w", err)
	}
	return nil
}

// Subscribe starts delivering envelopes published by other instances.
func (r *Relay) Subscribe(deliver DeliverFunc) error {
	sub, err := r.conn.Subscribe(r.subject, func(m *nats.Msg) {
		r.handle(m.Data, deliver)
	})
	if err != nil {
		return fmt.Errorf("relay: subscribe %s: %w", r.subject, err)
	}
	r.sub = sub
	r.logger.Info("relay subscribed", "subject", r.subject)
	return nil
}

// handle decodes one envelope and delivers it unless it is our own echo.
func (r *Relay) handle(data []byte, deliver DeliverFunc) bool {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.logger.Warn("dropping malformed envelope", "error", err)
		return false
	}
	if env.Origin == r.origin || env.Room == "" {
		return false
	}
	deliver(env.Room, env.Sender, env.Text)
	return true
}

// Close drains the subscription and closes the connection.
func (r *Relay) Close() {
	if r.conn == nil {
		return
	}
	if r.sub != nil {
		r.sub.Unsubscribe()
	}
	if err := r.conn.Drain(); err != nil {
		r.conn.Close()
	}
}
