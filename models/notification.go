package models

import "time"

// Notification types produced by the exchange.
const (
	NotificationDrawReady     = "DRAW_READY"
	NotificationMatchRevealed = "MATCH_REVEALED"
	NotificationNewMessage    = "NEW_MESSAGE"
)

// Notification is an in-app notification row. DispatchedAt is stamped by
// the notification worker after the email relay accepted it; nil rows are
// pending dispatch and retried on the next tick.
type Notification struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string `gorm:"index;not null" json:"user_id"` // ExternalUserID
	Type      string `gorm:"type:varchar(32);not null" json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	ActionURL string `json:"action_url,omitempty"`

	ReadAt       *time.Time `json:"read_at,omitempty"`
	DispatchedAt *time.Time `gorm:"index" json:"dispatched_at,omitempty"`

	Timestamps
}

// ActivityLog keeps an append-only audit trail of exchange actions.
type ActivityLog struct {
	ID       string  `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   *string `gorm:"index" json:"user_id,omitempty"` // nil = system action
	EventID  string  `gorm:"index" json:"event_id,omitempty"`
	Action   string  `gorm:"not null" json:"action"` // e.g. MATCHES_GENERATED, MATCH_REVEALED
	Metadata string  `gorm:"type:text" json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
