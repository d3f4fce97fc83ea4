package models

import "time"

// Chat is one conversation session owned by a user.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is one persisted message in a conversation. Seq preserves
// insertion order; the core appends and never reorders or rewrites past
// messages.
type ChatMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Seq       int       `json:"seq"`
	CreatedAt time.Time `json:"created_at"`

	// Interrupted marks an assistant message persisted from a failed
	// stream. Partial content is never stored without this flag.
	Interrupted bool `json:"interrupted,omitempty"`
}
