package services

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"valentine-exchange-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ParticipantService serves the caller's own mirrored profile, their
// wishlist, and invite codes. Profile identity itself lives in the external
// profile service; the sync worker keeps the local mirror fresh.
type ParticipantService struct {
	DB *gorm.DB
}

func NewParticipantService(db *gorm.DB) *ParticipantService {
	return &ParticipantService{DB: db}
}

// GetMyProfile returns the caller's mirrored profile with wishlist.
func (s *ParticipantService) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var user models.ExchangeUser
	if err := s.DB.Preload("WishlistItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC")
	}).Where("external_user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "profile not synced yet"})
		}
		return RespondError(c, ErrPersistenceFailure)
	}

	return RespondSuccess(c, user)
}

// GetMyWishlist lists the caller's wishlist items in display order.
func (s *ParticipantService) GetMyWishlist(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var items []models.WishlistItem
	if err := s.DB.Where("user_id = ?", userID).
		Order("display_order ASC").
		Find(&items).Error; err != nil {
		return RespondError(c, ErrPersistenceFailure)
	}
	return RespondSuccess(c, fiber.Map{"items": items, "count": len(items)})
}

// AddWishlistItem appends one item, enforcing the per-user cap.
func (s *ParticipantService) AddWishlistItem(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Link        string `json:"link"`
		Icon        string `json:"icon"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}

	item, err := s.addWishlistItem(userID, req.Name, req.Description, req.Link, req.Icon)
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"success": true, "data": item})
}

func (s *ParticipantService) addWishlistItem(userID, name, description, link, icon string) (*models.WishlistItem, error) {
	var item *models.WishlistItem
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.WishlistItem{}).
			Where("user_id = ?", userID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("%w: count wishlist: %v", ErrPersistenceFailure, err)
		}
		if count >= models.MaxWishlistItems {
			return ErrWishlistLimit
		}

		item = &models.WishlistItem{
			ID:           uuid.NewString(),
			UserID:       userID,
			Name:         name,
			Description:  description,
			Link:         link,
			Icon:         icon,
			DisplayOrder: int(count),
		}
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("%w: insert wishlist item: %v", ErrPersistenceFailure, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteWishlistItem removes one of the caller's own items.
func (s *ParticipantService) DeleteWishlistItem(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	itemID := c.Params("id")

	res := s.DB.Where("id = ? AND user_id = ?", itemID, userID).
		Delete(&models.WishlistItem{})
	if res.Error != nil {
		return RespondError(c, ErrPersistenceFailure)
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "wishlist item not found"})
	}
	return RespondSuccess(c, fiber.Map{"deleted": true})
}

// CreateInvite mints a short invite code for an event.
func (s *ParticipantService) CreateInvite(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		EventID   string `json:"event_id"`
		ExpiresAt string `json:"expires_at"`
		UseLimit  int    `json:"use_limit"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.EventID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "event_id is required"})
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid expires_at (use RFC3339)"})
		}
		expiresAt = &t
	}

	invite := models.InviteCode{
		ID:        uuid.NewString(),
		Code:      generateInviteCode(),
		EventID:   req.EventID,
		CreatedBy: userID,
		ExpiresAt: expiresAt,
		UseLimit:  req.UseLimit,
	}
	if err := s.DB.Create(&invite).Error; err != nil {
		log.Printf("[INVITE] DB error creating invite for event %s: %v", req.EventID, err)
		return RespondError(c, ErrPersistenceFailure)
	}

	return c.Status(201).JSON(fiber.Map{"success": true, "data": invite})
}

// ValidateInvite checks a code without consuming a use.
func (s *ParticipantService) ValidateInvite(c *fiber.Ctx) error {
	code := c.Params("code")

	var invite models.InviteCode
	if err := s.DB.Where("code = ?", code).First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RespondError(c, ErrInviteInvalid)
		}
		return RespondError(c, ErrPersistenceFailure)
	}
	if invite.ExpiresAt != nil && invite.ExpiresAt.Before(time.Now().UTC()) {
		return RespondError(c, ErrInviteInvalid)
	}
	if invite.UseLimit > 0 && invite.UseCount >= invite.UseLimit {
		return RespondError(c, ErrInviteInvalid)
	}

	return RespondSuccess(c, fiber.Map{"valid": true, "event_id": invite.EventID})
}

// RedeemInvite validates a code and counts the use. Expired or exhausted
// codes fail without mutating the counter.
func (s *ParticipantService) RedeemInvite(c *fiber.Ctx) error {
	code := c.Params("code")

	invite, err := s.redeemInvite(code)
	if err != nil {
		return RespondError(c, err)
	}
	return RespondSuccess(c, fiber.Map{"event_id": invite.EventID, "code": invite.Code})
}

func (s *ParticipantService) redeemInvite(code string) (*models.InviteCode, error) {
	var invite models.InviteCode
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ?", code).First(&invite).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInviteInvalid
			}
			return fmt.Errorf("%w: load invite: %v", ErrPersistenceFailure, err)
		}
		if invite.ExpiresAt != nil && invite.ExpiresAt.Before(time.Now().UTC()) {
			return ErrInviteInvalid
		}
		if invite.UseLimit > 0 && invite.UseCount >= invite.UseLimit {
			return ErrInviteInvalid
		}

		res := tx.Model(&models.InviteCode{}).
			Where("id = ? AND use_count = ?", invite.ID, invite.UseCount).
			Update("use_count", invite.UseCount+1)
		if res.Error != nil {
			return fmt.Errorf("%w: count invite use: %v", ErrPersistenceFailure, res.Error)
		}
		if res.RowsAffected == 0 {
			// Concurrent redemption bumped the counter first; re-read would
			// be needed to know if any uses remain, so just reject.
			return ErrInviteInvalid
		}
		invite.UseCount++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// inviteRand is crypto/rand in production; swappable in tests.
var inviteRand io.Reader = rand.Reader

func generateInviteCode() string {
	b := make([]byte, 8)
	if _, err := io.ReadFull(inviteRand, b); err != nil {
		// Entropy failure must never mint a constant code; derive the
		// bytes from the clock instead.
		binary.BigEndian.PutUint64(b, uint64(time.Now().UnixNano()))
	}
	for i := range b {
		b[i] = inviteAlphabet[int(b[i])%len(inviteAlphabet)]
	}
	return string(b)
}
