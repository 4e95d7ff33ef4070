package models

import (
	"time"

	"gorm.io/gorm"
)

// Event statuses. An event is OPEN until matches are generated for it,
// transitions to GENERATED exactly once, and is optionally CLOSED afterwards.
const (
	EventStatusOpen      = "OPEN"
	EventStatusGenerated = "GENERATED"
	EventStatusClosed    = "CLOSED"
)

// Event is one gift-exchange round with its own participant snapshot
// and assignment set.
type Event struct {
	ID       string    `gorm:"primaryKey" json:"id"` // slug, e.g. "valentine-2026"
	Name     string    `gorm:"not null" json:"name"`
	DrawDate time.Time `gorm:"not null" json:"draw_date"`
	Status   string    `gorm:"type:varchar(16);default:'OPEN'" json:"status"`

	// MatchesGeneratedAt is the generate-once marker. It is written in the
	// same transaction that inserts the assignment batch; nil means the draw
	// has not happened yet.
	MatchesGeneratedAt *time.Time `json:"matches_generated_at,omitempty"`
	ParticipantCount   int        `json:"participant_count" gorm:"default:0"`

	// AutoDraw lets the scheduler trigger generation once DrawDate passes.
	AutoDraw bool `json:"auto_draw" gorm:"default:false"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
