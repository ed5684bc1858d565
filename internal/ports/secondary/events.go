package secondary

import (
	"context"
	"time"
)

// Event is an outbound domain notification (contact requested, status changed).
type Event struct {
	Type       string // "contact_requested", "status_changed"
	Key        string // aggregate ID the event is about
	OccurredAt time.Time
	Data       map[string]any
}

// EventPublisher hands events to the notification transport.
// Delivery itself is the transport's concern.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}
