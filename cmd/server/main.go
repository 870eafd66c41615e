package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/observer/beacon/internal/api"
	"github.com/observer/beacon/internal/config"
	"github.com/observer/beacon/internal/database"
	"github.com/observer/beacon/internal/presence"
	"github.com/observer/beacon/internal/pubsub"
	"github.com/observer/beacon/internal/relay"
	"github.com/observer/beacon/internal/server"
)

func main() {
	// Structured logging from the start
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Create context for initialization
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect to the main application's database when configured; the relay
	// serves presence fine without it.
	var db *database.DB
	var userRepo *database.UserRepository
	if cfg.DatabaseURL != "" {
		db, err = database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		userRepo = database.NewUserRepository(db)
		slog.Info("connected to database")
	} else {
		slog.Warn("DATABASE_URL not set - friend lookup endpoints disabled")
	}

	// Initialize PubSub (in-memory for single instance, Redis when other
	// services need to observe presence)
	var ps pubsub.PubSub
	if cfg.PubSubType == "redis" && cfg.RedisURL != "" {
		ps, err = pubsub.NewRedisPubSub(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
	} else {
		ps = pubsub.NewMemoryPubSub()
	}
	defer ps.Close()

	// Presence registry + websocket relay
	registry := presence.NewRegistry()
	hub := relay.NewHub(ps, relay.Options{
		EventsPerSec:    cfg.EventsPerSec,
		EventBurst:      cfg.EventBurst,
		MaxMessageBytes: cfg.MaxMessageBytes,
	}, logger)
	router := relay.NewRouter(registry, hub, ps, logger)
	hub.SetRouter(router)
	go hub.Run(context.Background())

	wsHandler := relay.NewHandler(hub, cfg.AllowedOrigins, logger)
	presenceHandler := api.NewPresenceHandler(registry, userRepo, ps, logger)

	// Create and start server
	deps := &server.Dependencies{
		DB:              db,
		PresenceHandler: presenceHandler,
		WSHandler:       wsHandler,
		Logger:          logger,
	}

	srv := server.New(cfg, deps)

	// Graceful shutdown setup
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-shutdownCtx.Done()
	slog.Info("shutting down gracefully...")

	// Give active connections 10 seconds to finish
	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeoutCancel()

	if err := srv.Shutdown(timeoutCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
