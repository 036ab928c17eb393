package domain

import (
	"errors"
	"strings"
	"time"
)

// Message is an immutable log entry in a conversation. The server assigns the
// ID; id, sender, body and created timestamp never change after creation. Only
// the read flag and timestamp may transition, and only from unread to read.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Body           string     `json:"body"`
	Read           bool       `json:"read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	DedupeKey      string     `json:"dedupe_key,omitempty"`
}

var (
	ErrEmptyMessage        = errors.New("chat: empty message body")
	ErrMissingConversation = errors.New("chat: conversation_id and sender_id are required")
)

// NewMessage validates and normalizes a message before it is handed to the
// transport. Whitespace-only bodies are rejected.
func NewMessage(m Message) (*Message, error) {
	if m.ConversationID == "" || m.SenderID == "" {
		return nil, ErrMissingConversation
	}
	m.Body = strings.TrimSpace(m.Body)
	if m.Body == "" {
		return nil, ErrEmptyMessage
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return &m, nil
}

// Before reports whether m sorts ahead of other: created time ascending,
// ties broken by id so the ordering is total.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// MarkRead transitions the read flag. The transition is one-way: a message
// already read keeps its original read timestamp.
func (m *Message) MarkRead(at time.Time) {
	if m.Read {
		return
	}
	m.Read = true
	t := at.UTC()
	m.ReadAt = &t
}
