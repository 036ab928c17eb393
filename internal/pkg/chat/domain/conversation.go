package domain

import "time"

// Preview is the last-message summary shown in the conversation list.
type Preview struct {
	Body      string    `json:"body"`
	SenderID  string    `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UserSummary is the slim participant projection returned by the directory
// endpoints; full profiles live outside this subsystem.
type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Conversation represents a 1:1 thread or a named group channel as held by
// the directory. Unread is a client-local derived counter (see Directory);
// it is rebuilt from the server payload on every full load.
type Conversation struct {
	ID           string      `json:"id"`
	Name         string      `json:"name,omitempty"` // empty for direct chats
	Participants []string    `json:"participants"`
	Other        UserSummary `json:"other_participant"`
	LastMessage  *Preview    `json:"last_message,omitempty"`
	Unread       int         `json:"unread"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// IsGroup reports whether the conversation is a named group rather than a
// direct two-party chat.
func (c Conversation) IsGroup() bool { return c.Name != "" }

// ApplyPreview records msg as the latest activity. Preview fields are
// overwritten unconditionally; counters are the caller's concern.
func (c *Conversation) ApplyPreview(msg Message) {
	c.LastMessage = &Preview{
		Body:      msg.Body,
		SenderID:  msg.SenderID,
		CreatedAt: msg.CreatedAt,
	}
	if msg.CreatedAt.After(c.UpdatedAt) {
		c.UpdatedAt = msg.CreatedAt
	}
}
