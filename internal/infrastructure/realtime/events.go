package realtime

import (
	"encoding/json"

	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat/domain"
)

// Protocol event names. Outbound events are emitted by the client; inbound
// events are fanned out to subscribers by the session read loop.
const (
	// outbound
	EventJoin        = "join"
	EventLeave       = "leave"
	EventSend        = "send"
	EventMarkRead    = "mark-read"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
	EventQueryOnline = "query-online"

	// inbound
	EventMessage      = "message"
	EventNewMessage   = "new-message"
	EventMessagesRead = "messages-read"
	EventUserTyping   = "user-typing"
	EventUserStopped  = "user-stopped-typing"
	EventOnlineStatus = "online-status"
)

// frame is the wire envelope for every event in both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomPayload addresses a single conversation (join, leave, typing signals).
type RoomPayload struct {
	ConversationID string `json:"conversation_id"`
}

// SendPayload carries an outbound message body.
type SendPayload struct {
	ConversationID string `json:"conversation_id"`
	Body           string `json:"body"`
	DedupeKey      string `json:"dedupe_key,omitempty"`
}

// MarkReadPayload lists messages the local user has now seen.
type MarkReadPayload struct {
	ConversationID string   `json:"conversation_id"`
	MessageIDs     []string `json:"message_ids"`
}

// QueryOnlinePayload requests a presence snapshot for the listed users.
type QueryOnlinePayload struct {
	UserIDs []string `json:"user_ids"`
}

// MessagePayload is the inbound shape for both "message" and "new-message".
type MessagePayload struct {
	ConversationID string         `json:"conversation_id"`
	Message        domain.Message `json:"message"`
}

// MessagesReadPayload is the inbound read-receipt shape.
type MessagesReadPayload struct {
	ConversationID string   `json:"conversation_id"`
	MessageIDs     []string `json:"message_ids"`
	ReadAt         int64    `json:"read_at"` // unix seconds
}

// TypingPayload identifies who is (or stopped) composing where.
type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// OnlineStatusPayload is the inbound presence snapshot: user id to online
// flag. Users absent from the mapping stay at their last known state.
type OnlineStatusPayload struct {
	Statuses map[string]bool `json:"statuses"`
}
