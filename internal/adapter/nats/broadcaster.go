// Package nats implements the broadcast port on a NATS connection, letting
// external observers follow task lifecycle and directory changes.
package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Broadcaster publishes events as JSON onto NATS subjects.
type Broadcaster struct {
	conn *nats.Conn
}

// Connect dials the NATS server at url.
func Connect(url string) (*Broadcaster, error) {
	conn, err := nats.Connect(url,
		nats.Name("agentmesh"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &Broadcaster{conn: conn}, nil
}

// Publish sends the payload on subject. Failures are logged, never
// propagated: broadcasting is advisory and must not fail the request.
func (b *Broadcaster) Publish(_ context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal broadcast payload", "subject", subject, "error", err)
		return
	}
	if err := b.conn.Publish(subject, data); err != nil {
		slog.Error("publish broadcast", "subject", subject, "error", err)
	}
}

// Close drains and closes the connection.
func (b *Broadcaster) Close() {
	if err := b.conn.Drain(); err != nil {
		slog.Error("drain nats connection", "error", err)
	}
}
