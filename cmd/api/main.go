// Package main provides the entrypoint for the HelioWatch API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/heliowatch/heliowatch/internal/api"
	"github.com/heliowatch/heliowatch/internal/api/middleware"
	"github.com/heliowatch/heliowatch/internal/app"
	"github.com/heliowatch/heliowatch/internal/config"
	"github.com/heliowatch/heliowatch/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	serviceName     = "heliowatch-api"
	shutdownTimeout = 30 * time.Second
)

func main() {
	log := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Error().Err(err).Msg("api exited")
		os.Exit(1) //nolint:gocritic // deferred stop is irrelevant on exit
	}
}

func run(ctx context.Context, log zerolog.Logger) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting HelioWatch API")

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			log.Error().Err(err).Msg("telemetry flush failed")
		}
	}()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	pipeline, err := app.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			log.Error().Err(err).Msg("pipeline close failed")
		}
	}()

	log.Info().
		Bool("telemetry", cfg.Telemetry.Enabled).
		Str("cache", pipeline.CacheBackend).
		Strs("providers", pipeline.Registry.GetProviderNames()).
		Msg("pipeline ready")

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: api.NewRouter(api.RouterConfig{
			Version:      Version,
			BuildTime:    BuildTime,
			Logger:       log,
			ServiceName:  serviceName,
			Metrics:      metrics,
			RequireTLS:   cfg.Server.RequireTLS,
			Reports:      pipeline.Reports,
			Registry:     pipeline.Registry,
			Ready:        pipeline.Ready,
			CacheBackend: pipeline.CacheBackend,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
