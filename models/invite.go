package models

import "time"

// InviteCode gates registration into an exchange round.
type InviteCode struct {
	ID        string     `gorm:"primaryKey;type:uuid" json:"id"`
	Code      string     `gorm:"uniqueIndex;not null" json:"code"`
	EventID   string     `gorm:"index;not null" json:"event_id"`
	CreatedBy string     `gorm:"not null" json:"created_by"` // ExternalUserID
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UseLimit  int        `json:"use_limit" gorm:"default:0"` // 0 = unlimited
	UseCount  int        `json:"use_count" gorm:"default:0"`

	Timestamps
}
