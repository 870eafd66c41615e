// Package relay routes events between connected clients. It owns no state of
// its own: the presence registry decides who is online, the router decides who
// hears about each event, and the gateway delivers it.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/observer/beacon/internal/domain"
	"github.com/observer/beacon/internal/presence"
	"github.com/observer/beacon/internal/pubsub"
)

// Gateway is the transport boundary the router sends through. Implementations
// must absorb delivery failures; a dead connection is the transport's problem,
// not the router's.
type Gateway interface {
	// Send delivers a message to a single connection, best effort.
	Send(connID string, msg *Message)

	// SendAll delivers a message to every connected client, best effort.
	SendAll(msg *Message)
}

// Router dispatches inbound events to registry mutations and outbound
// fan-out. Events from different connections may arrive concurrently; the
// registry serializes the mutations.
type Router struct {
	registry *presence.Registry
	gateway  Gateway
	events   pubsub.PubSub
	logger   *slog.Logger
}

// NewRouter creates a router over the given registry and gateway. Presence
// transitions are additionally published on the pubsub presence topic for
// out-of-process observers.
func NewRouter(registry *presence.Registry, gateway Gateway, events pubsub.PubSub, logger *slog.Logger) *Router {
	return &Router{
		registry: registry,
		gateway:  gateway,
		events:   events,
		logger:   logger.With("component", "router"),
	}
}

// HandleEvent processes one inbound event from the given connection. A
// malformed event is rejected with an error event to that connection only;
// the registry and every other connection are unaffected.
func (r *Router) HandleEvent(ctx context.Context, connID string, msg *Message) {
	switch msg.Type {
	case EventTypeJoin:
		r.handleJoin(ctx, connID, msg.Payload)
	case EventTypeMessageSend:
		r.handleMessageSend(connID, msg.Payload)
	case EventTypeMessageSeen:
		r.handleMessageSeen(connID, msg.Payload)
	case EventTypeTyping:
		r.handleTyping(connID, msg.Payload)
	case EventTypeFriendRequestSend:
		r.handleFriendRequestSend(connID, msg.Payload)
	case EventTypeFriendRequestCancel:
		r.handleFriendRequestCancel(connID, msg.Payload)
	case EventTypeFriendRequestDecl:
		r.handleFriendRequestDecline(connID, msg.Payload)
	case EventTypeFriendRequestAccept:
		r.handleFriendRequestAccept(connID, msg.Payload)
	case EventTypeFriendsRefresh:
		r.handleFriendsRefresh(connID, msg.Payload)
	case EventTypeUserRegistered:
		r.handleUserRegistered(connID, msg.Payload)
	case EventTypeLogout:
		r.handleLogout(ctx, connID, msg.Payload)
	default:
		r.sendError(connID, "unknown_event", "Unknown event type: "+msg.Type)
	}
}

// HandleDisconnect removes whatever entry the closed connection owned and
// notifies that user's online friends. A connection that never joined is a
// no-op.
func (r *Router) HandleDisconnect(ctx context.Context, connID string) {
	entry, found := r.registry.LookupByConn(connID)
	if !found {
		return
	}

	// Friend set and their connections captured before the removal; the
	// departing entry is gone afterwards.
	friendConns := r.registry.ConnIDsFor(presence.FriendIDs(entry.Profile))

	if _, removed := r.registry.RemoveByConn(connID); !removed {
		// Lost the race with an explicit logout; that path already notified.
		return
	}

	r.logger.Info("user disconnected", "user_id", entry.UserID, "conn_id", connID, "online", r.registry.Len())
	r.fanOutSnapshot(friendConns, connID)
	r.publishPresence(ctx, entry.UserID, false)
}

func (r *Router) handleJoin(ctx context.Context, connID string, payload json.RawMessage) {
	var p JoinPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.UserID == "" || p.Profile == nil || p.Profile.Friends == nil {
		r.rejectEvent(connID, EventTypeJoin, err)
		return
	}

	r.registry.Register(p.UserID, connID, *p.Profile)

	// Targets come from the pushed profile, not whatever the registry kept
	// from an earlier connection.
	friendConns := r.registry.ConnIDsFor(presence.FriendIDs(*p.Profile))

	snapshot := r.snapshotMessage()
	if snapshot == nil {
		return
	}
	r.gateway.Send(connID, snapshot)
	for _, conn := range friendConns {
		if conn != connID {
			r.gateway.Send(conn, snapshot)
		}
	}

	r.logger.Info("user joined", "user_id", p.UserID, "conn_id", connID, "online", r.registry.Len())
	r.publishPresence(ctx, p.UserID, true)
}

func (r *Router) handleMessageSend(connID string, payload json.RawMessage) {
	var msg domain.ChatMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.ReceiverID == "" {
		r.rejectEvent(connID, EventTypeMessageSend, err)
		return
	}

	// Best effort only: an offline receiver reads the message from the
	// database later, which the main application already wrote to.
	receiver, online := r.registry.Lookup(msg.ReceiverID)
	if !online {
		return
	}
	r.forward(receiver.ConnID, EventTypeMessageReceived, payload)
}

func (r *Router) handleMessageSeen(connID string, payload json.RawMessage) {
	var seen domain.MessageSeen
	if err := json.Unmarshal(payload, &seen); err != nil || seen.SenderID == "" {
		r.rejectEvent(connID, EventTypeMessageSeen, err)
		return
	}

	sender, online := r.registry.Lookup(seen.SenderID)
	if !online {
		return
	}
	r.forward(sender.ConnID, EventTypeMessageSeenAck, payload)
}

func (r *Router) handleTyping(connID string, payload json.RawMessage) {
	var typing domain.TypingInfo
	if err := json.Unmarshal(payload, &typing); err != nil || typing.ReceiverID == "" {
		r.rejectEvent(connID, EventTypeTyping, err)
		return
	}

	receiver, online := r.registry.Lookup(typing.ReceiverID)
	if !online {
		return
	}
	r.forward(receiver.ConnID, EventTypeTypingNotice, payload)
}

func (r *Router) handleFriendRequestSend(connID string, payload json.RawMessage) {
	var p FriendRequestSendPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ReceiverID == "" || p.Sender == nil {
		r.rejectEvent(connID, EventTypeFriendRequestSend, err)
		return
	}

	receiver, online := r.registry.Lookup(p.ReceiverID)
	if !online {
		return
	}
	r.emit(receiver.ConnID, EventTypeFriendRequestReceived, FriendRequestReceivedPayload{
		Sender:     p.Sender,
		SenderName: p.SenderName,
	})
}

func (r *Router) handleFriendRequestCancel(connID string, payload json.RawMessage) {
	var p FriendRequestCancelPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ReceiverID == "" {
		r.rejectEvent(connID, EventTypeFriendRequestCancel, err)
		return
	}

	receiver, online := r.registry.Lookup(p.ReceiverID)
	if !online {
		return
	}
	r.emit(receiver.ConnID, EventTypeFriendRequestCancelled, FriendRequestCancelledPayload{
		SenderID: p.SenderID,
	})
}

func (r *Router) handleFriendRequestDecline(connID string, payload json.RawMessage) {
	var p FriendRequestDeclinePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.SenderID == "" {
		r.rejectEvent(connID, EventTypeFriendRequestDecl, err)
		return
	}

	sender, online := r.registry.Lookup(p.SenderID)
	if !online {
		return
	}
	r.emit(sender.ConnID, EventTypeFriendRequestDeclined, FriendRequestDeclinedPayload{
		ReceiverID: p.ReceiverID,
	})
}

func (r *Router) handleFriendRequestAccept(connID string, payload json.RawMessage) {
	var p FriendRequestAcceptPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.SenderID == "" {
		r.rejectEvent(connID, EventTypeFriendRequestAccept, err)
		return
	}

	sender, online := r.registry.Lookup(p.SenderID)
	if !online {
		return
	}
	r.emit(sender.ConnID, EventTypeFriendRequestAccepted, FriendRequestAcceptedPayload{
		ReceiverID:   p.ReceiverID,
		ReceiverName: p.ReceiverName,
	})
}

func (r *Router) handleFriendsRefresh(connID string, payload json.RawMessage) {
	var p FriendsRefreshPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.UserID == "" {
		r.rejectEvent(connID, EventTypeFriendsRefresh, err)
		return
	}

	if !r.registry.UpdateFriends(p.UserID, p.Friends) {
		return
	}

	// Fan-out targets come from the list just written, read back from the
	// registry rather than the request payload.
	entry, found := r.registry.Lookup(p.UserID)
	if !found {
		return
	}
	friendConns := r.registry.ConnIDsFor(presence.FriendIDs(entry.Profile))

	snapshot := r.snapshotMessage()
	if snapshot == nil {
		return
	}
	for _, conn := range friendConns {
		if conn != entry.ConnID {
			r.gateway.Send(conn, snapshot)
		}
	}
}

func (r *Router) handleUserRegistered(connID string, payload json.RawMessage) {
	var p UserRegisteredPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Profile == nil {
		r.rejectEvent(connID, EventTypeUserRegistered, err)
		return
	}

	// Everyone hears about a new signup, friends or not.
	msg, err := NewMessage(EventTypeUserRegisteredNotice, p)
	if err != nil {
		r.logger.Error("failed to build registered notice", "error", err)
		return
	}
	r.gateway.SendAll(msg)
}

func (r *Router) handleLogout(ctx context.Context, connID string, payload json.RawMessage) {
	var p LogoutPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.UserID == "" {
		r.rejectEvent(connID, EventTypeLogout, err)
		return
	}

	entry, found := r.registry.Lookup(p.UserID)
	if !found {
		return
	}

	// Friend connections captured before removal; the snapshot sent after it
	// no longer lists the departing user.
	friendConns := r.registry.ConnIDsFor(presence.FriendIDs(entry.Profile))

	if _, removed := r.registry.RemoveByUser(p.UserID); !removed {
		return
	}

	r.logger.Info("user logged out", "user_id", p.UserID, "online", r.registry.Len())
	r.fanOutSnapshot(friendConns, entry.ConnID)
	r.publishPresence(ctx, p.UserID, false)
}

// snapshotMessage builds a presence.snapshot message from the current
// directory.
func (r *Router) snapshotMessage() *Message {
	msg, err := NewMessage(EventTypePresenceSnapshot, PresenceSnapshotPayload{
		OnlineUsers: r.registry.Snapshot(),
	})
	if err != nil {
		r.logger.Error("failed to build presence snapshot", "error", err)
		return nil
	}
	return msg
}

// fanOutSnapshot sends the current directory to the given connections,
// skipping the originating one.
func (r *Router) fanOutSnapshot(conns []string, except string) {
	snapshot := r.snapshotMessage()
	if snapshot == nil {
		return
	}
	for _, conn := range conns {
		if conn != except {
			r.gateway.Send(conn, snapshot)
		}
	}
}

// forward relays an inbound payload verbatim under a new event type, so any
// fields the relay does not model still reach the recipient.
func (r *Router) forward(connID, eventType string, payload json.RawMessage) {
	msg := &Message{Type: eventType, Payload: payload, Timestamp: time.Now()}
	r.gateway.Send(connID, msg)
}

// emit marshals a typed payload and sends it to one connection.
func (r *Router) emit(connID, eventType string, payload interface{}) {
	msg, err := NewMessage(eventType, payload)
	if err != nil {
		r.logger.Error("failed to build message", "type", eventType, "error", err)
		return
	}
	r.gateway.Send(connID, msg)
}

func (r *Router) rejectEvent(connID, eventType string, err error) {
	r.logger.Warn("malformed event", "type", eventType, "conn_id", connID, "error", err)
	r.sendError(connID, "invalid_payload", "Invalid payload for "+eventType)
}

func (r *Router) sendError(connID, code, message string) {
	msg, err := NewMessage(EventTypeError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	r.gateway.Send(connID, msg)
}

type presenceChange struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
	Count  int    `json:"online_count"`
}

// publishPresence mirrors an online/offline transition onto the pubsub
// presence topic and the affected user's topic.
func (r *Router) publishPresence(ctx context.Context, userID string, online bool) {
	if r.events == nil {
		return
	}

	eventType := "presence.offline"
	if online {
		eventType = "presence.online"
	}
	payload, err := json.Marshal(presenceChange{UserID: userID, Online: online, Count: r.registry.Len()})
	if err != nil {
		return
	}

	for _, topic := range []string{pubsub.Topics.Presence(), pubsub.Topics.User(userID)} {
		msg := &pubsub.Message{Topic: topic, Type: eventType, Payload: payload}
		if err := r.events.Publish(ctx, topic, msg); err != nil {
			r.logger.Warn("failed to publish presence change", "topic", topic, "error", err)
		}
	}
}
