package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kendall-kelly/helphub-api/models"
)

// OtpSender delivers a completion code to the customer
type OtpSender interface {
	SendOtp(ctx context.Context, delivery models.OtpDelivery) error
}

// LogSender writes codes to the log. Useful for development, where no
// delivery channel is configured.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "otp_sender").Logger()}
}

// SendOtp logs the delivery
func (s *LogSender) SendOtp(ctx context.Context, delivery models.OtpDelivery) error {
	s.log.Info().
		Str("request_id", delivery.RequestID.String()).
		Str("to", delivery.CustomerEmail).
		Str("code", delivery.Code).
		Time("valid_until", delivery.ValidUntil).
		Bool("resent", delivery.Resent).
		Msg("OTP delivery (logged)")
	return nil
}

// OutboxKey is the Redis key holding the latest code delivered for a request
func OutboxKey(requestID uuid.UUID) string {
	return "otp:outbox:" + requestID.String()
}

// RedisSender stores each delivery in Redis until the code expires, where the
// customer-facing channel picks it up.
type RedisSender struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisSender creates a RedisSender
func NewRedisSender(client *redis.Client) *RedisSender {
	return &RedisSender{client: client, now: time.Now}
}

// SendOtp replaces the stored delivery for the request
func (s *RedisSender) SendOtp(ctx context.Context, delivery models.OtpDelivery) error {
	ttl := delivery.ValidUntil.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}

	data, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("failed to marshal otp delivery: %w", err)
	}

	key := OutboxKey(delivery.RequestID)
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store otp in redis key '%s': %w", key, err)
	}
	return nil
}
