package main

import (
	"chat-notify/auth"
	"chat-notify/contract"
	"chat-notify/infrastructure/http/server"
	"chat-notify/infrastructure/postgres"
	"chat-notify/internal"
	"chat-notify/observability"
	"chat-notify/runtime"
	"chat-notify/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Notify server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a fatal error.
// Keeping os.Exit out of here lets the deferred cleanups run.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Shared state: one registry for the whole process
	metrics := observability.NewMetrics()
	registry := runtime.NewRegistry()
	dispatcher := workers.NewDispatcher(log, registry, metrics, config.DeliveryTimeout)
	sessions := runtime.NewSessionManager(log, registry, metrics,
		config.SessionBufferSize, config.KeepAliveInterval)

	// 4. Supervised workers: ingest (classify -> dispatch), stats and backlog sampling
	openFeed := func(ctx context.Context) (contract.ChangeFeed, error) {
		return postgres.Open(ctx, log, postgres.Config{
			DSN:                  config.DatabaseURL,
			MinReconnectInterval: config.MinReconnectInterval,
			MaxReconnectInterval: config.MaxReconnectInterval,
			PingInterval:         config.PingInterval,
			MaxFailedAttempts:    config.MaxFailedReconnects,
		})
	}
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewIngestWorker(log, openFeed, dispatcher, metrics),
		workers.NewStatsWorker(log, registry, metrics, config.StatsInterval),
		workers.NewBacklogWorker(log, registry, metrics, config.BacklogInterval, config.BacklogWarnRatio),
	)

	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		sup.Run(ctx)
	}()

	// 5. HTTP server (SSE stream, health, metrics)
	tokens := auth.NewTokenManager(config.JWTSecret, config.JWTIssuer)
	httpServer := server.NewServer(log, config.Address(), sessions, registry, tokens, metrics, config.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	exitCode := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case runErr = <-errChan:
		exitCode = exitRuntime
	}

	// 7. Graceful shutdown: close every stream, then stop ingest
	log.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown", "error", err)
	}
	sup.Stop()
	<-supervisorDone

	stats := registry.Stats()
	log.Info("Program stopped cleanly", slog.Int("sessions_left", stats.Sessions))
	return exitCode, runErr
}
