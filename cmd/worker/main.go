// Package main provides the entrypoint for the HelioWatch site monitor.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/heliowatch/heliowatch/internal/api/response"
	"github.com/heliowatch/heliowatch/internal/app"
	"github.com/heliowatch/heliowatch/internal/config"
	"github.com/heliowatch/heliowatch/internal/telemetry"
	"github.com/heliowatch/heliowatch/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "heliowatch-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	log.Info().Str("build_time", BuildTime).Msg("starting HelioWatch worker")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	sites, err := config.ParseSites(cfg.Worker.Sites)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid site list")
	}

	pipeline, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}
	defer func() { _ = pipeline.Close() }()

	var publisher worker.Publisher = worker.LogPublisher{Logger: log}
	if cfg.Worker.PubSubProjectID != "" {
		ps, err := worker.NewPubSubPublisher(ctx, worker.PubSubPublisherConfig{
			ProjectID: cfg.Worker.PubSubProjectID,
			Topic:     cfg.Worker.PubSubTopic,
			Logger:    log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub publisher")
		}
		publisher = ps
		log.Info().Str("topic", cfg.Worker.PubSubTopic).Msg("publishing site status to pubsub")
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close publisher")
		}
	}()

	monitor := worker.NewMonitor(worker.MonitorConfig{
		Sites:       sites,
		Interval:    cfg.Worker.Interval,
		Concurrency: cfg.Worker.Concurrency,
		Reports:     pipeline.Reports,
		Publisher:   publisher,
		Logger:      log.With().Str("component", "monitor").Logger(),
	})
	if err := monitor.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start site monitor")
	}
	defer monitor.Stop()

	if cfg.Worker.PubSubProjectID != "" && cfg.Worker.PubSubSubscription != "" {
		triggers, err := worker.NewTriggerSubscriber(ctx, worker.TriggerSubscriberConfig{
			ProjectID:        cfg.Worker.PubSubProjectID,
			SubscriptionName: cfg.Worker.PubSubSubscription,
			Monitor:          monitor,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create trigger subscriber")
		}
		defer func() { _ = triggers.Close() }()

		go func() {
			if err := triggers.Start(ctx); err != nil {
				log.Error().Err(err).Msg("trigger subscriber stopped")
			}
		}()
	}

	// Worker also exposes health endpoints for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]interface{}{
			"status":  "OK",
			"version": Version,
			"monitor": monitor.Stats(),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := pipeline.Ready(r.Context()); err != nil {
			response.ServiceUnavailable(w, r, err.Error())
			return
		}
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "OK"})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
