package models

import "time"

// Match records a single giver→receiver assignment within an event.
// The batch for an event forms a derangement: every participant appears
// exactly once as giver and exactly once as receiver, never as both ends
// of the same row. Rows are written once at generation time and never
// mutated afterwards except to stamp RevealedAt.
type Match struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	EventID    string `gorm:"not null;uniqueIndex:idx_event_giver,priority:1;uniqueIndex:idx_event_receiver,priority:1" json:"event_id"`
	GiverID    string `gorm:"not null;uniqueIndex:idx_event_giver,priority:2" json:"giver_id"`
	ReceiverID string `gorm:"not null;uniqueIndex:idx_event_receiver,priority:2" json:"receiver_id"`

	AssignedAt time.Time  `gorm:"not null" json:"assigned_at"`
	RevealedAt *time.Time `json:"revealed_at,omitempty"`

	Timestamps
}
