package events

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/garde/internal/logging"
	"github.com/example/garde/internal/ports/secondary"
)

// BreakerSettings tunes the circuit around a transport.
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32        // trips the circuit; 0 means 5
	OpenTimeout         time.Duration // time spent open before probing; 0 means 30s
}

// BreakerPublisher stops calling a failing transport until it recovers.
// While open, Publish fails fast with gobreaker.ErrOpenState.
type BreakerPublisher struct {
	next    secondary.EventPublisher
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerPublisher wraps next in a circuit breaker.
func NewBreakerPublisher(next secondary.EventPublisher, settings BreakerSettings, logger *zap.Logger) *BreakerPublisher {
	logger = logging.OrNop(logger)
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	timeout := settings.OpenTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("event transport circuit changed state",
				zap.String("transport", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BreakerPublisher{next: next, breaker: cb}
}

// Publish forwards ev through the breaker.
func (p *BreakerPublisher) Publish(ctx context.Context, ev secondary.Event) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.next.Publish(ctx, ev)
	})
	return err
}

// State reports the breaker state.
func (p *BreakerPublisher) State() gobreaker.State {
	return p.breaker.State()
}

// Close closes the wrapped transport.
func (p *BreakerPublisher) Close() error {
	return p.next.Close()
}

var _ secondary.EventPublisher = (*BreakerPublisher)(nil)
