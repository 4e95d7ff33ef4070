package models

import "time"

// ChatThread is the anonymous channel tied 1:1 to a match. It is created
// lazily on first reveal (get-or-create keyed by MatchID, so a retried
// reveal never produces a duplicate thread).
type ChatThread struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID       string     `gorm:"uniqueIndex;not null" json:"match_id"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`

	Timestamps
}

// ChatMessage is one message inside a thread.
type ChatMessage struct {
	ID       string    `gorm:"primaryKey;type:uuid" json:"id"`
	ThreadID string    `gorm:"index;not null" json:"thread_id"`
	SenderID string    `gorm:"not null" json:"sender_id"` // ExternalUserID
	Text     string    `gorm:"type:text;not null" json:"text"`
	SentAt   time.Time `json:"sent_at" gorm:"autoCreateTime"`
}

// MaxChatMessageLen bounds a single chat message.
const MaxChatMessageLen = 1000
