package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/example/garde/internal/ports/secondary"
)

// RedisClient is the part of *redis.Client the publisher needs.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// RedisPublisher sends each event as a JSON envelope on the pub/sub channel
// "<prefix>.<event type>".
type RedisPublisher struct {
	client RedisClient
	prefix string
}

// NewRedisPublisher wraps an existing client.
func NewRedisPublisher(client RedisClient, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// DialRedis connects to addr and checks the connection with PING.
func DialRedis(ctx context.Context, addr, prefix string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewRedisPublisher(client, prefix), nil
}

// Publish sends ev. Having no subscriber is not an error.
func (p *RedisPublisher) Publish(ctx context.Context, ev secondary.Event) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	channel := Subject(p.prefix, ev.Type)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis channel %s: %w", channel, err)
	}
	return nil
}

// Close closes the underlying client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

var _ secondary.EventPublisher = (*RedisPublisher)(nil)
