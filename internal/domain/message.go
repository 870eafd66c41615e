package domain

import "time"

// ChatMessage is relayed verbatim to the receiver if they are online.
// Persistence belongs to the main application; the relay never stores these.
type ChatMessage struct {
	ID         string    `json:"id,omitempty"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Body       string    `json:"body,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// MessageSeen is a read receipt routed back to the original sender.
type MessageSeen struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
}

// TypingInfo is a transient typing indicator for the receiver.
type TypingInfo struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	IsTyping   bool   `json:"is_typing"`
}
