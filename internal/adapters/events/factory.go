package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/garde/internal/ports/secondary"
)

// Transports.
const (
	TransportLog   = "log"
	TransportRedis = "redis"
	TransportNATS  = "nats"
)

// Options selects and configures a transport.
type Options struct {
	Transport     string // log (default), redis or nats
	RedisAddr     string
	NATSURL       string
	SubjectPrefix string
}

// New builds the configured publisher. Network transports are wrapped in a
// circuit breaker.
func New(ctx context.Context, opts Options, logger *zap.Logger) (secondary.EventPublisher, error) {
	switch opts.Transport {
	case "", TransportLog:
		return NewLogPublisher(logger), nil
	case TransportRedis:
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("redis transport needs redis_addr")
		}
		p, err := DialRedis(ctx, opts.RedisAddr, opts.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		return NewBreakerPublisher(p, BreakerSettings{Name: TransportRedis}, logger), nil
	case TransportNATS:
		if opts.NATSURL == "" {
			return nil, fmt.Errorf("nats transport needs nats_url")
		}
		p, err := DialNATS(opts.NATSURL, opts.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		return NewBreakerPublisher(p, BreakerSettings{Name: TransportNATS}, logger), nil
	default:
		return nil, fmt.Errorf("unknown event transport %q (want log, redis or nats)", opts.Transport)
	}
}
