// Package events contains outbound transports for domain events: a zap log
// sink, redis pub/sub and NATS, plus a circuit breaker that wraps either
// network transport.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/garde/internal/ports/secondary"
)

// Envelope is the wire form of an event.
type Envelope struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// NewEnvelope stamps ev with a fresh ID.
func NewEnvelope(ev secondary.Event) Envelope {
	return Envelope{
		ID:         uuid.New(),
		Type:       ev.Type,
		Key:        ev.Key,
		OccurredAt: ev.OccurredAt.UTC(),
		Data:       ev.Data,
	}
}

// Encode marshals ev into a fresh envelope.
func Encode(ev secondary.Event) ([]byte, error) {
	payload, err := json.Marshal(NewEnvelope(ev))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", ev.Type, err)
	}
	return payload, nil
}

// Subject joins prefix and event type, e.g. "garde.contact_requested".
func Subject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}
