package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kendall-kelly/helphub-api/config"
	"github.com/kendall-kelly/helphub-api/logger"
	"github.com/kendall-kelly/helphub-api/notifications"
)

const shutdownTimeout = 15 * time.Second

var runMode = flag.String("m", "all", "Run mode: 'api', 'worker' (notification tasks, needs Redis) or 'all'")

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.SetConfig(cfg)

	log := logger.New(cfg.GoEnv, cfg.LogLevel)
	log.Info().Str("mode", *runMode).Str("env", cfg.GoEnv).Msg("Starting Help Hub API")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := config.ConnectDatabase(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := config.Migrate(config.GetDB()); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	log.Info().Msg("Database migration completed successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, log, config.GetDB())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer app.Close()

	runAPI := *runMode == "api" || *runMode == "all"
	runWorker := (*runMode == "worker" || *runMode == "all") && cfg.RedisEnabled()
	if *runMode == "worker" && !cfg.RedisEnabled() {
		log.Fatal().Msg("Worker mode needs REDIS_ADDR")
	}
	if !runAPI && !runWorker {
		log.Fatal().Str("mode", *runMode).Msg("Unknown run mode")
	}

	if runWorker {
		worker := notifications.NewServer(cfg, log)
		if err := worker.Start(notifications.NewServeMux(app.processor)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start notification worker")
		}
		defer worker.Shutdown()
		log.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("Notification worker started")
	}

	var srv *http.Server
	if runAPI {
		router, err := setupRouter(app)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set up router")
		}
		srv = &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Info().Str("addr", srv.Addr).Msg("Server is running")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Server stopped unexpectedly")
				stop()
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}
}
