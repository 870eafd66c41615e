package relay

import (
	"encoding/json"
	"time"

	"github.com/observer/beacon/internal/domain"
	"github.com/observer/beacon/internal/presence"
)

// Event types for client -> server
const (
	EventTypeJoin                = "user.join"
	EventTypeMessageSend         = "message.send"
	EventTypeMessageSeen         = "message.seen"
	EventTypeTyping              = "typing"
	EventTypeFriendRequestSend   = "friend_request.send"
	EventTypeFriendRequestCancel = "friend_request.cancel"
	EventTypeFriendRequestDecl   = "friend_request.decline"
	EventTypeFriendRequestAccept = "friend_request.accept"
	EventTypeFriendsRefresh      = "friends.refresh"
	EventTypeUserRegistered      = "user.registered"
	EventTypeLogout              = "user.logout"
)

// Event types for server -> client
const (
	EventTypeError                  = "error"
	EventTypePresenceSnapshot       = "presence.snapshot"
	EventTypeMessageReceived        = "message.received"
	EventTypeMessageSeenAck         = "message.seen_ack"
	EventTypeTypingNotice           = "typing.notice"
	EventTypeFriendRequestReceived  = "friend_request.received"
	EventTypeFriendRequestCancelled = "friend_request.cancelled"
	EventTypeFriendRequestDeclined  = "friend_request.declined"
	EventTypeFriendRequestAccepted  = "friend_request.accepted"
	EventTypeUserRegisteredNotice   = "user.registered_notice"
)

// Message is the base WebSocket message envelope
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// NewMessage creates a message with the current timestamp
func NewMessage(eventType string, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      eventType,
		Payload:   payloadBytes,
		Timestamp: time.Now(),
	}, nil
}

// ============================================================================
// Client -> Server Payloads
// ============================================================================

// JoinPayload announces an authenticated user on this connection, carrying
// the profile the client fetched from the main application.
type JoinPayload struct {
	UserID  string          `json:"user_id"`
	Profile *domain.Profile `json:"profile"`
}

// FriendRequestSendPayload carries a new friend request to relay
type FriendRequestSendPayload struct {
	Sender     *domain.Profile `json:"sender"`
	ReceiverID string          `json:"receiver_id"`
	SenderName string          `json:"sender_name"`
}

// FriendRequestCancelPayload withdraws a pending friend request
type FriendRequestCancelPayload struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
}

// FriendRequestDeclinePayload rejects a pending friend request
type FriendRequestDeclinePayload struct {
	ReceiverID string `json:"receiver_id"`
	SenderID   string `json:"sender_id"`
}

// FriendRequestAcceptPayload confirms a pending friend request
type FriendRequestAcceptPayload struct {
	ReceiverID   string `json:"receiver_id"`
	ReceiverName string `json:"receiver_name"`
	SenderID     string `json:"sender_id"`
}

// FriendsRefreshPayload replaces the online user's friend list
type FriendsRefreshPayload struct {
	UserID  string          `json:"user_id"`
	Friends []domain.Friend `json:"friends"`
}

// UserRegisteredPayload announces a freshly signed-up user
type UserRegisteredPayload struct {
	Profile *domain.Profile `json:"profile"`
}

// LogoutPayload removes the user from the directory without waiting for the
// transport to close
type LogoutPayload struct {
	UserID string `json:"user_id"`
}

// ============================================================================
// Server -> Client Payloads
// ============================================================================

// ErrorPayload for error responses
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PresenceSnapshotPayload carries the full online directory. Recipients
// filter it against their own friend list client-side.
type PresenceSnapshotPayload struct {
	OnlineUsers []presence.OnlineUser `json:"online_users"`
}

// FriendRequestReceivedPayload notifies the receiver of a new request
type FriendRequestReceivedPayload struct {
	Sender     *domain.Profile `json:"sender"`
	SenderName string          `json:"sender_name"`
}

// FriendRequestCancelledPayload notifies the receiver of a withdrawn request
type FriendRequestCancelledPayload struct {
	SenderID string `json:"sender_id"`
}

// FriendRequestDeclinedPayload notifies the sender of a rejection
type FriendRequestDeclinedPayload struct {
	ReceiverID string `json:"receiver_id"`
}

// FriendRequestAcceptedPayload notifies the sender of an acceptance
type FriendRequestAcceptedPayload struct {
	ReceiverID   string `json:"receiver_id"`
	ReceiverName string `json:"receiver_name"`
}
