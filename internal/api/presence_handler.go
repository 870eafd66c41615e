// Package api exposes the relay's read side over HTTP: who is online, a
// user's friend list, and a hook for the main application to announce new
// signups.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/observer/beacon/internal/database"
	"github.com/observer/beacon/internal/domain"
	"github.com/observer/beacon/internal/presence"
	"github.com/observer/beacon/internal/pubsub"
	"github.com/observer/beacon/internal/relay"
)

// PresenceHandler serves presence queries and the registered-user hook.
type PresenceHandler struct {
	registry *presence.Registry
	users    *database.UserRepository // nil when no database is configured
	events   pubsub.PubSub
	logger   *slog.Logger
}

func NewPresenceHandler(registry *presence.Registry, users *database.UserRepository, events pubsub.PubSub, logger *slog.Logger) *PresenceHandler {
	return &PresenceHandler{
		registry: registry,
		users:    users,
		events:   events,
		logger:   logger,
	}
}

// ListOnline handles GET /presence/online
func (h *PresenceHandler) ListOnline(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"online_users": snapshot,
		"count":        len(snapshot),
	})
}

// GetOnline handles GET /presence/online/{userId}
func (h *PresenceHandler) GetOnline(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	entry, online := h.registry.Lookup(userID)
	resp := map[string]interface{}{
		"user_id": userID,
		"online":  online,
	}
	if online {
		resp["connected_at"] = entry.ConnectedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListFriends handles GET /users/{userId}/friends
func (h *PresenceHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		writeError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	userID := r.PathValue("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	friends, err := h.users.ListFriends(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("list friends failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list friends")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"friends": friends,
		"count":   len(friends),
	})
}

// NotifyRegistered handles POST /notify/registered. The main application
// calls this after a signup; the notice travels over the pubsub broadcast
// topic so every relay instance forwards it to its clients.
func (h *PresenceHandler) NotifyRegistered(w http.ResponseWriter, r *http.Request) {
	var profile domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil || profile.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid profile")
		return
	}

	payload, err := json.Marshal(relay.UserRegisteredPayload{Profile: &profile})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode notice")
		return
	}

	topic := pubsub.Topics.Broadcast()
	msg := &pubsub.Message{Topic: topic, Type: relay.EventTypeUserRegisteredNotice, Payload: payload}
	if err := h.events.Publish(r.Context(), topic, msg); err != nil {
		h.logger.Error("failed to publish registered notice", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to publish notice")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
