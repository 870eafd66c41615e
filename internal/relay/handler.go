package relay

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Handler handles WebSocket upgrade requests
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a WebSocket handler. An empty allowedOrigins list
// accepts every origin; otherwise the Origin header must match one of the
// entries exactly.
func NewHandler(hub *Hub, allowedOrigins []string, logger *slog.Logger) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
		logger: logger,
	}
}

// ServeHTTP upgrades HTTP to WebSocket and handles the connection
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn, h.logger)

	// Use a dedicated context for the WebSocket connection lifecycle
	// The request context gets cancelled when ServeHTTP returns after upgrade
	ctx, cancel := context.WithCancel(context.Background())
	client.SetCancelFunc(cancel)
	h.hub.Register(client)

	// Start client goroutines
	go client.WritePump(ctx)
	client.ReadPump(ctx) // Block here until client disconnects
}
