package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/example/garde/internal/ports/secondary"
)

// NATSConn is the part of *nats.Conn the publisher needs.
type NATSConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher sends each event as a JSON envelope on "<prefix>.<event type>".
type NATSPublisher struct {
	conn   NATSConn
	prefix string
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn NATSConn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// DialNATS connects to url with reconnects enabled.
func DialNATS(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("garde"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(10),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return NewNATSPublisher(conn, prefix), nil
}

// Publish sends ev. The context is checked before the send only; core NATS
// publishes are buffered and do not block.
func (p *NATSPublisher) Publish(ctx context.Context, ev secondary.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	subject := Subject(p.prefix, ev.Type)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to NATS subject %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

var _ secondary.EventPublisher = (*NATSPublisher)(nil)
