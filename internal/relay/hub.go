package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/observer/beacon/internal/pubsub"
)

// Options bound the inbound side of every connection.
type Options struct {
	// EventsPerSec and EventBurst parameterize the per-connection rate
	// limiter applied to inbound events.
	EventsPerSec float64
	EventBurst   int

	// MaxMessageBytes caps a single inbound websocket message.
	MaxMessageBytes int64
}

// DefaultOptions returns the limits used when none are configured.
func DefaultOptions() Options {
	return Options{
		EventsPerSec:    20,
		EventBurst:      40,
		MaxMessageBytes: 65536,
	}
}

// Hub owns the physical connections. It implements Gateway for the router and
// hands inbound traffic back to it; it knows nothing about users or friends.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // conn ID -> client

	router *Router
	events pubsub.PubSub
	opts   Options
	logger *slog.Logger
}

// NewHub creates a hub with no connections.
func NewHub(events pubsub.PubSub, opts Options, logger *slog.Logger) *Hub {
	if opts.EventsPerSec <= 0 {
		opts = DefaultOptions()
	}
	return &Hub{
		clients: make(map[string]*Client),
		events:  events,
		opts:    opts,
		logger:  logger.With("component", "hub"),
	}
}

// SetRouter wires the router in after construction; the router needs the hub
// as its gateway, so the two cannot be built in one step.
func (h *Hub) SetRouter(router *Router) {
	h.router = router
}

// Run subscribes the hub to the pubsub broadcast topic and relays everything
// published there to all connected clients, until ctx is cancelled. This is
// how the REST side injects relay-wide notices.
func (h *Hub) Run(ctx context.Context) {
	if h.events == nil {
		<-ctx.Done()
		return
	}

	sub, err := h.events.Subscribe(ctx, pubsub.Topics.Broadcast(), func(ctx context.Context, msg *pubsub.Message) {
		h.SendAll(&Message{Type: msg.Type, Payload: msg.Payload})
	})
	if err != nil {
		h.logger.Error("failed to subscribe to broadcast topic", "error", err)
		return
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
}

// Register adds a freshly upgraded connection.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID()] = client
	h.mu.Unlock()

	h.logger.Debug("client connected", "conn_id", client.ID(), "remote_addr", client.conn.RemoteAddr())
}

// Unregister drops a closed connection and tells the router, which removes
// any presence entry the connection owned and notifies its friends.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, known := h.clients[client.ID()]
	delete(h.clients, client.ID())
	h.mu.Unlock()

	if !known {
		return
	}

	// The send channel stays open so a concurrent SendAll cannot panic; the
	// write pump exits through the cancelled context instead.
	if client.cancel != nil {
		client.cancel()
	}

	if h.router != nil {
		h.router.HandleDisconnect(context.Background(), client.ID())
	}
	h.logger.Debug("client disconnected", "conn_id", client.ID())
}

// Send delivers a message to one connection. Unknown connections and full
// send buffers are dropped silently; delivery is best effort.
func (h *Hub) Send(connID string, msg *Message) {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	client.Send(msg)
}

// SendAll delivers a message to every connected client.
func (h *Hub) SendAll(msg *Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", "type", msg.Type, "error", err)
		return
	}
	for _, client := range clients {
		client.enqueue(data)
	}
}

// ConnCount returns the number of open connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
