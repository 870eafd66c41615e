package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/observer/beacon/internal/api"
	"github.com/observer/beacon/internal/config"
	"github.com/observer/beacon/internal/database"
	"github.com/observer/beacon/internal/relay"
)

// Dependencies holds all service dependencies for the server
type Dependencies struct {
	DB              *database.DB // nil when no database is configured
	PresenceHandler *api.PresenceHandler
	WSHandler       *relay.Handler
	Logger          *slog.Logger
}

// New creates an HTTP server with all routes configured.
func New(cfg *config.Config, deps *Dependencies) *http.Server {
	mux := http.NewServeMux()

	// Register routes
	registerRoutes(mux, deps)

	// Wrap with middleware
	handler := chainMiddleware(mux,
		requestIDMiddleware,
		corsMiddleware(cfg),
		loggingMiddleware(deps.Logger),
		recoverMiddleware(deps.Logger),
	)

	return &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Health check - essential for docker, k8s, load balancers
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Ready check - verifies DB connectivity when a database is configured
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.DB != nil {
			if err := deps.DB.Health(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"not ready","error":"database unavailable"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	// =========================================================================
	// Presence routes
	// =========================================================================
	mux.HandleFunc("GET /presence/online", deps.PresenceHandler.ListOnline)
	mux.HandleFunc("GET /presence/online/{userId}", deps.PresenceHandler.GetOnline)
	mux.HandleFunc("GET /users/{userId}/friends", deps.PresenceHandler.ListFriends)
	mux.HandleFunc("POST /notify/registered", deps.PresenceHandler.NotifyRegistered)

	// =========================================================================
	// WebSocket route
	// =========================================================================
	mux.Handle("GET /ws", deps.WSHandler)
}
