package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kendall-kelly/helphub-api/models"
)

// DefaultChannelPrefix namespaces the pub/sub channels events go out on
const DefaultChannelPrefix = "helphub:events:"

// RedisPublisher publishes each event as JSON on the channel of its room.
// The socket gateway subscribes to helphub:events:* and fans out.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher creates a publisher; an empty prefix uses DefaultChannelPrefix
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the pub/sub channel for a room
func (p *RedisPublisher) Channel(room string) string {
	return p.prefix + room
}

// Publish sends the event to its room
func (p *RedisPublisher) Publish(ctx context.Context, event models.DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}
	if err := p.client.Publish(ctx, p.Channel(event.Room), data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// LogPublisher writes events to the log instead of a broker
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "event_publisher").Logger()}
}

// Publish logs the event
func (p *LogPublisher) Publish(ctx context.Context, event models.DomainEvent) error {
	p.log.Info().
		Str("type", string(event.Type)).
		Str("room", event.Room).
		Str("request_id", event.RequestID.String()).
		Interface("payload", event.Payload).
		Msg("Event published")
	return nil
}
