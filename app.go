package main

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kendall-kelly/helphub-api/config"
	"github.com/kendall-kelly/helphub-api/notifications"
	"github.com/kendall-kelly/helphub-api/repository"
	"github.com/kendall-kelly/helphub-api/services"
)

// application holds the long-lived services shared by the HTTP server and
// the background worker
type application struct {
	cfg        *config.Config
	log        zerolog.Logger
	lifecycle  *services.RequestLifecycle
	volunteers *services.VolunteerService

	redis      *redis.Client
	taskClient *asynq.Client
	processor  *notifications.Processor
}

// newApplication wires the services. With Redis configured, notifications go
// through the asynq queue and events are published on Redis channels;
// otherwise both are delivered in-process and written to the log.
func newApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger, db *gorm.DB) (*application, error) {
	app := &application{cfg: cfg, log: log}
	store := repository.NewGormStore(db)

	var (
		publisher  services.EventPublisher = notifications.NewLogPublisher(log)
		sender     notifications.OtpSender = notifications.NewLogSender(log)
		dispatcher services.NotificationDispatcher
	)
	if cfg.RedisEnabled() {
		client, err := notifications.ConnectRedis(cfg, log)
		if err != nil {
			return nil, err
		}
		app.redis = client
		publisher = notifications.NewRedisPublisher(client, notifications.DefaultChannelPrefix)
		sender = notifications.NewRedisSender(client)

		app.taskClient = asynq.NewClient(notifications.RedisClientOpt(cfg))
		dispatcher = notifications.NewAsynqDispatcher(app.taskClient)
	}

	direct := notifications.NewDirectDispatcher(publisher, sender)
	app.processor = notifications.NewProcessor(direct, log)
	if dispatcher == nil {
		dispatcher = direct
	}

	var images services.ImageService
	if cfg.S3Enabled() {
		storage, err := services.NewS3Service(ctx, cfg, log)
		if err != nil {
			app.Close()
			return nil, err
		}
		images = services.NewImageService(storage)
	} else {
		log.Warn().Msg("AWS_S3_BUCKET is not set; profile images are disabled")
	}

	tokens, err := services.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	app.lifecycle = services.NewRequestLifecycle(store, services.NewOtpGenerator(nil, nil), dispatcher, publisher, log, cfg.NotificationTimeout)
	app.volunteers = services.NewVolunteerService(store, tokens, images, log)
	return app, nil
}

// Close drains background notifications and releases the Redis connections
func (a *application) Close() {
	if a.lifecycle != nil {
		a.lifecycle.Close()
	}
	if a.taskClient != nil {
		if err := a.taskClient.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close task client")
		}
	}
	if err := notifications.DisconnectRedis(a.redis); err != nil {
		a.log.Warn().Err(err).Msg("Failed to disconnect from Redis")
	}
}
