package services

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"valentine-exchange-system/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// A single connection keeps the in-memory database alive and serializes
	// concurrent transactions the way a row lock would.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get raw DB handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Event{},
		&models.Match{},
		&models.ExchangeUser{},
		&models.WishlistItem{},
		&models.ChatThread{},
		&models.ChatMessage{},
		&models.Notification{},
		&models.ActivityLog{},
		&models.InviteCode{},
	); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func newTestMatchService(t *testing.T) *MatchService {
	t.Helper()
	db := newTestDB(t)
	return NewMatchService(db, NewNotificationService(db))
}

func seedEvent(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	event := models.Event{
		ID:       id,
		Name:     id,
		DrawDate: time.Now().UTC().Add(24 * time.Hour),
		Status:   models.EventStatusOpen,
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("Failed to seed event: %v", err)
	}
}

func seedParticipants(t *testing.T, db *gorm.DB, names ...string) {
	t.Helper()
	for i, name := range names {
		user := models.ExchangeUser{
			ID:              uuid.NewString(),
			ExternalUserID:  strings.ToLower(name),
			Name:            name,
			Email:           strings.ToLower(name) + "@example.com",
			ProfileComplete: true,
			CreatedAt:       time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		if err := db.Create(&user).Error; err != nil {
			t.Fatalf("Failed to seed participant %s: %v", name, err)
		}
	}
}

func eventMatches(t *testing.T, db *gorm.DB, eventID string) []models.Match {
	t.Helper()
	var matches []models.Match
	if err := db.Where("event_id = ?", eventID).Find(&matches).Error; err != nil {
		t.Fatalf("Failed to load matches: %v", err)
	}
	return matches
}

func matchPairs(matches []models.Match) []string {
	pairs := make([]string, 0, len(matches))
	for _, m := range matches {
		pairs = append(pairs, m.GiverID+"→"+m.ReceiverID)
	}
	sort.Strings(pairs)
	return pairs
}

func TestGenerateForEvent(t *testing.T) {
	s := newTestMatchService(t)
	seedEvent(t, s.DB, "valentine-2026")
	seedParticipants(t, s.DB, "Kelvin", "Amara", "Zara", "Javier")

	summary, err := s.generateForEvent("valentine-2026")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summary.ParticipantCount != 4 || summary.MatchCount != 4 {
		t.Errorf("Expected 4 participants and 4 matches, got %d/%d",
			summary.ParticipantCount, summary.MatchCount)
	}

	matches := eventMatches(t, s.DB, "valentine-2026")
	var participants []models.ExchangeUser
	s.DB.Find(&participants)
	assertValidDerangement(t, participants, matches)

	var event models.Event
	if err := s.DB.First(&event, "id = ?", "valentine-2026").Error; err != nil {
		t.Fatalf("Failed to reload event: %v", err)
	}
	if event.Status != models.EventStatusGenerated {
		t.Errorf("Expected event status GENERATED, got %s", event.Status)
	}
	if event.MatchesGeneratedAt == nil {
		t.Error("Expected matches_generated_at to be set")
	}
	if event.ParticipantCount != 4 {
		t.Errorf("Expected participant_count 4, got %d", event.ParticipantCount)
	}

	// Draw-ready notifications were queued for everyone
	var notifCount int64
	s.DB.Model(&models.Notification{}).
		Where("type = ?", models.NotificationDrawReady).
		Count(&notifCount)
	if notifCount != 4 {
		t.Errorf("Expected 4 DRAW_READY notifications, got %d", notifCount)
	}
}

func TestGenerateForEvent_Twice(t *testing.T) {
	s := newTestMatchService(t)
	seedEvent(t, s.DB, "valentine-2026")
	seedParticipants(t, s.DB, "Kelvin", "Amara", "Zara")

	if _, err := s.generateForEvent("valentine-2026"); err != nil {
		t.Fatalf("First generation failed: %v", err)
	}
	firstPairs := matchPairs(eventMatches(t, s.DB, "valentine-2026"))

	_, err := s.generateForEvent("valentine-2026")
	if !errors.Is(err, ErrAlreadyGenerated) {
		t.Fatalf("Expected ErrAlreadyGenerated, got %v", err)
	}

	secondPairs := matchPairs(eventMatches(t, s.DB, "valentine-2026"))
	if len(secondPairs) != len(firstPairs) {
		t.Fatalf("Assignment count changed: %d → %d", len(firstPairs), len(secondPairs))
	}
	for i := range firstPairs {
		if firstPairs[i] != secondPairs[i] {
			t.Errorf("Assignment set changed after rejected second generation: %s vs %s",
				firstPairs[i], secondPairs[i])
		}
	}
}

func TestGenerateForEvent_InsufficientParticipants(t *testing.T) {
	s := newTestMatchService(t)
	seedEvent(t, s.DB, "valentine-2026")
	seedParticipants(t, s.DB, "Kelvin")

	_, err := s.generateForEvent("valentine-2026")
	if !errors.Is(err, ErrInsufficientParticipants) {
		t.Fatalf("Expected ErrInsufficientParticipants, got %v", err)
	}

	// Nothing persisted, event still OPEN
	if got := len(eventMatches(t, s.DB, "valentine-2026")); got != 0 {
		t.Errorf("Expected 0 matches, got %d", got)
	}
	var event models.Event
	s.DB.First(&event, "id = ?", "valentine-2026")
	if event.Status != models.EventStatusOpen || event.MatchesGeneratedAt != nil {
		t.Errorf("Expected event untouched (OPEN, no marker), got %s / %v",
			event.Status, event.MatchesGeneratedAt)
	}
}

func TestGenerateForEvent_UnknownEvent(t *testing.T) {
	s := newTestMatchService(t)

	if _, err := s.generateForEvent("nope"); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("Expected ErrEventNotFound, got %v", err)
	}
}

func TestGenerateForEvent_ConcurrentTriggers(t *testing.T) {
	s := newTestMatchService(t)
	seedEvent(t, s.DB, "valentine-2026")
	seedParticipants(t, s.DB, "Kelvin", "Amara", "Zara", "Javier", "Elena", "Marcus")

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.generateForEvent("valentine-2026")
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAlreadyGenerated):
			// lost the race, expected
		default:
			t.Errorf("Unexpected error from concurrent generate: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("Expected exactly 1 successful generation, got %d", successes)
	}

	// The batch was persisted exactly once, never doubled
	if got := len(eventMatches(t, s.DB, "valentine-2026")); got != 6 {
		t.Errorf("Expected exactly 6 matches, got %d", got)
	}
}

func TestRevealForGiver_BeforeDraw(t *testing.T) {
	s := newTestMatchService(t)
	seedEvent(t, s.DB, "valentine-2026")
	seedParticipants(t, s.DB, "Kelvin", "Amara")

	if _, err := s.revealForGiver("valentine-2026", "kelvin"); !errors.Is(err, ErrDrawNotReady) {
		t.Fatalf("Expected ErrDrawNotReady, got %v", err)
	}
}

func TestRevealForGiver_NoMatch(t *testing.T) {
	s := newTestMatchService(t)
	seedEvent(t, s.DB, "valentine-2026")
	seedParticipants(t, s.DB, "Kelvin", "Amara")
	// Zara registered but never completed her profile, so she is outside
	// the eligible snapshot.
	s.DB.Create(&models.ExchangeUser{
		ID:             uuid.NewString(),
		ExternalUserID: "zara",
		Name:           "Zara",
	})

	if _, err := s.generateForEvent("valentine-2026"); err != nil {
		t.Fatalf("Generation failed: %v", err)
	}

	if _, err := s.revealForGiver("valentine-2026", "zara"); !errors.Is(err, ErrNoMatchAssigned) {
		t.Fatalf("Expected ErrNoMatchAssigned, got %v", err)
	}
}

func TestExchangeEndToEnd(t *testing.T) {
	s := newTestMatchService(t)
	seedEvent(t, s.DB, "valentine-2026")
	seedParticipants(t, s.DB, "Kelvin", "Amara", "Zara", "Javier")

	summary, err := s.generateForEvent("valentine-2026")
	if err != nil {
		t.Fatalf("Generation failed: %v", err)
	}
	if summary.MatchCount != 4 {
		t.Fatalf("Expected 4 matches, got %d", summary.MatchCount)
	}

	matches := eventMatches(t, s.DB, "valentine-2026")
	var participants []models.ExchangeUser
	s.DB.Find(&participants)
	assertValidDerangement(t, participants, matches)

	result, err := s.revealForGiver("valentine-2026", "kelvin")
	if err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}
	if result.Receiver.ExternalUserID == "kelvin" {
		t.Error("Kelvin was assigned to himself")
	}
	if result.ChatThreadID == "" {
		t.Error("Expected a chat thread to be provisioned on reveal")
	}
	firstRevealedAt := result.RevealedAt

	// Second reveal is rejected and mutates nothing
	if _, err := s.revealForGiver("valentine-2026", "kelvin"); !errors.Is(err, ErrAlreadyRevealed) {
		t.Fatalf("Expected ErrAlreadyRevealed, got %v", err)
	}

	var match models.Match
	if err := s.DB.Where("event_id = ? AND giver_id = ?", "valentine-2026", "kelvin").
		First(&match).Error; err != nil {
		t.Fatalf("Failed to reload match: %v", err)
	}
	if match.RevealedAt == nil || !match.RevealedAt.Equal(firstRevealedAt) {
		t.Errorf("RevealedAt changed after rejected second reveal: %v vs %v",
			match.RevealedAt, firstRevealedAt)
	}

	// The read path serves the same result without mutating anything
	readBack, revealed, err := s.revealedMatchForGiver("valentine-2026", "kelvin")
	if err != nil || !revealed {
		t.Fatalf("Expected revealed match via read path, got revealed=%v err=%v", revealed, err)
	}
	if readBack.Receiver.ExternalUserID != result.Receiver.ExternalUserID {
		t.Errorf("Read path returned a different receiver: %s vs %s",
			readBack.Receiver.ExternalUserID, result.Receiver.ExternalUserID)
	}
	if readBack.ChatThreadID != result.ChatThreadID {
		t.Errorf("Read path returned a different thread: %s vs %s",
			readBack.ChatThreadID, result.ChatThreadID)
	}

	// Exactly one thread exists for the match even after the retried reveal
	var threadCount int64
	s.DB.Model(&models.ChatThread{}).Where("match_id = ?", match.ID).Count(&threadCount)
	if threadCount != 1 {
		t.Errorf("Expected exactly 1 chat thread, got %d", threadCount)
	}
}

func TestRevealedMatchForGiver_NotYetRevealed(t *testing.T) {
	s := newTestMatchService(t)
	seedEvent(t, s.DB, "valentine-2026")
	seedParticipants(t, s.DB, "Kelvin", "Amara")

	if _, err := s.generateForEvent("valentine-2026"); err != nil {
		t.Fatalf("Generation failed: %v", err)
	}

	_, revealed, err := s.revealedMatchForGiver("valentine-2026", "kelvin")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if revealed {
		t.Error("Expected revealed=false before the first reveal")
	}
}
