package models

import (
	"time"

	"gorm.io/gorm"
)

// ExchangeUser is a local snapshot of user data needed for the exchange.
// Owned and managed solely by the Valentine Exchange service.
// Populated via sync worker from the Profile Service's user table.
type ExchangeUser struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"` // the profile service's UUID
	Name           string  `gorm:"index;not null" json:"name"`
	Email          string  `json:"email,omitempty"`
	AvatarURL      *string `json:"avatar_url,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	Work           *string `json:"work,omitempty"`
	Hobbies        *string `json:"hobbies,omitempty"`

	// ProfileComplete gates eligibility: only complete profiles enter the
	// draw snapshot.
	ProfileComplete bool `json:"profile_complete" gorm:"default:false;index"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	WishlistItems []WishlistItem `json:"wishlist_items,omitempty" gorm:"foreignKey:UserID;references:ExternalUserID"`
}

// WishlistItem is a gift idea a participant exposes to whoever draws them.
type WishlistItem struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string `gorm:"index;not null" json:"user_id"` // ExternalUserID
	Name         string `gorm:"not null" json:"name"`
	Description  string `json:"description,omitempty"`
	Link         string `json:"link,omitempty"`
	Icon         string `json:"icon,omitempty"`
	DisplayOrder int    `json:"display_order" gorm:"column:display_order;default:0"`

	Timestamps
}

// MaxWishlistItems caps how many items a single user may keep.
const MaxWishlistItems = 10
