package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"valentine-exchange-system/models"

	"github.com/google/uuid"
)

func TestParticipantService_WishlistLimit(t *testing.T) {
	s := NewParticipantService(newTestDB(t))

	for i := 0; i < models.MaxWishlistItems; i++ {
		item, err := s.addWishlistItem("kelvin", fmt.Sprintf("Gift idea %d", i), "", "", "")
		if err != nil {
			t.Fatalf("Item %d: expected no error, got %v", i, err)
		}
		if item.DisplayOrder != i {
			t.Errorf("Item %d: expected display order %d, got %d", i, i, item.DisplayOrder)
		}
	}

	if _, err := s.addWishlistItem("kelvin", "One too many", "", "", ""); !errors.Is(err, ErrWishlistLimit) {
		t.Fatalf("Expected ErrWishlistLimit, got %v", err)
	}

	// The cap is per user
	if _, err := s.addWishlistItem("amara", "First idea", "", "", ""); err != nil {
		t.Errorf("Expected another user's add to succeed, got %v", err)
	}
}

func TestParticipantService_RedeemInvite(t *testing.T) {
	s := NewParticipantService(newTestDB(t))

	mkInvite := func(code string, expiresAt *time.Time, useLimit int) {
		t.Helper()
		invite := models.InviteCode{
			ID:        uuid.NewString(),
			Code:      code,
			EventID:   "valentine-2026",
			CreatedBy: "kelvin",
			ExpiresAt: expiresAt,
			UseLimit:  useLimit,
		}
		if err := s.DB.Create(&invite).Error; err != nil {
			t.Fatalf("Failed to seed invite: %v", err)
		}
	}

	t.Run("Valid code", func(t *testing.T) {
		mkInvite("LOVE2026", nil, 0)
		invite, err := s.redeemInvite("LOVE2026")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if invite.EventID != "valentine-2026" {
			t.Errorf("Expected event valentine-2026, got %s", invite.EventID)
		}
		if invite.UseCount != 1 {
			t.Errorf("Expected use count 1, got %d", invite.UseCount)
		}
	})

	t.Run("Unknown code", func(t *testing.T) {
		if _, err := s.redeemInvite("NOPE"); !errors.Is(err, ErrInviteInvalid) {
			t.Errorf("Expected ErrInviteInvalid, got %v", err)
		}
	})

	t.Run("Expired code", func(t *testing.T) {
		past := time.Now().UTC().Add(-time.Hour)
		mkInvite("OLDCODE1", &past, 0)
		if _, err := s.redeemInvite("OLDCODE1"); !errors.Is(err, ErrInviteInvalid) {
			t.Errorf("Expected ErrInviteInvalid, got %v", err)
		}
	})

	t.Run("Exhausted code", func(t *testing.T) {
		mkInvite("ONESHOT1", nil, 1)
		if _, err := s.redeemInvite("ONESHOT1"); err != nil {
			t.Fatalf("First redemption failed: %v", err)
		}
		if _, err := s.redeemInvite("ONESHOT1"); !errors.Is(err, ErrInviteInvalid) {
			t.Errorf("Expected ErrInviteInvalid after limit, got %v", err)
		}
	})
}

func TestGenerateInviteCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code := generateInviteCode()
		if len(code) != 8 {
			t.Fatalf("Expected 8-char code, got %q", code)
		}
		for _, ch := range code {
			if !strings.ContainsRune(inviteAlphabet, ch) {
				t.Fatalf("Code %q contains %q outside the alphabet", code, ch)
			}
		}
		seen[code] = true
	}
	if len(seen) < 95 {
		t.Errorf("Expected near-unique codes, got %d distinct out of 100", len(seen))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestGenerateInviteCode_EntropyFailure(t *testing.T) {
	orig := inviteRand
	inviteRand = failingReader{}
	defer func() { inviteRand = orig }()

	code := generateInviteCode()
	if len(code) != 8 {
		t.Fatalf("Expected 8-char code, got %q", code)
	}
	for _, ch := range code {
		if !strings.ContainsRune(inviteAlphabet, ch) {
			t.Fatalf("Code %q contains %q outside the alphabet", code, ch)
		}
	}
	// The zero-byte code would collide on the unique index for every
	// subsequent failure; the fallback must not produce it.
	if code == strings.Repeat(string(inviteAlphabet[0]), 8) {
		t.Errorf("Entropy failure produced the constant code %q", code)
	}
}
