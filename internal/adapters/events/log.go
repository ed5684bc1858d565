package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/garde/internal/logging"
	"github.com/example/garde/internal/ports/secondary"
)

// LogPublisher writes events to the process log. It is the default transport
// when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logging.OrNop(logger)}
}

// Publish logs ev at info level.
func (p *LogPublisher) Publish(ctx context.Context, ev secondary.Event) error {
	fields := make([]zap.Field, 0, len(ev.Data)+3)
	fields = append(fields,
		zap.String("event_type", ev.Type),
		zap.String("key", ev.Key),
		zap.Time("occurred_at", ev.OccurredAt),
	)
	for k, v := range ev.Data {
		fields = append(fields, zap.Any(k, v))
	}
	p.logger.Info("event", fields...)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }

var _ secondary.EventPublisher = (*LogPublisher)(nil)
