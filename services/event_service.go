package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"valentine-exchange-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// EventService owns exchange rounds: creation, countdown, closing, and the
// public participant list.
type EventService struct {
	DB *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db}
}

// CreateEvent creates a new round. The id is a slug derived from the name
// ("Valentine 2026" → "valentine-2026") so links stay human-readable.
func (s *EventService) CreateEvent(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		DrawDate string `json:"draw_date"`
		AutoDraw bool   `json:"auto_draw"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.Name == "" || req.DrawDate == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name and draw_date are required"})
	}

	drawDate, err := time.Parse(time.RFC3339, req.DrawDate)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid draw_date (use RFC3339)"})
	}

	event, err := s.createEvent(req.Name, drawDate, req.AutoDraw)
	if err != nil {
		log.Printf("[EVENT] Failed to create event %q: %v", req.Name, err)
		return RespondError(c, err)
	}

	log.Printf("[EVENT] ✅ Created event %s (draw on %s)", event.ID, drawDate.Format(time.RFC3339))
	return c.Status(201).JSON(fiber.Map{"success": true, "data": event})
}

// createEvent inserts a new round. Names that slug to an existing id fail
// with ErrEventExists rather than leaking the key violation.
func (s *EventService) createEvent(name string, drawDate time.Time, autoDraw bool) (*models.Event, error) {
	event := models.Event{
		ID:       slug.Make(name),
		Name:     name,
		DrawDate: drawDate,
		Status:   models.EventStatusOpen,
		AutoDraw: autoDraw,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.Event
		err := tx.First(&existing, "id = ?", event.ID).Error
		if err == nil {
			return ErrEventExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: check event id: %v", ErrPersistenceFailure, err)
		}
		if err := tx.Create(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEventExists
			}
			return fmt.Errorf("%w: insert event: %v", ErrPersistenceFailure, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetEvent returns the event plus a countdown to its draw date.
func (s *EventService) GetEvent(c *fiber.Ctx) error {
	eventID := c.Params("id")

	event, err := s.getEvent(eventID)
	if err != nil {
		return RespondError(c, err)
	}

	remaining := time.Until(event.DrawDate)
	countdown := fiber.Map{
		"days":       max64(0, int64(remaining.Hours())/24),
		"hours":      max64(0, int64(remaining.Hours())%24),
		"minutes":    max64(0, int64(remaining.Minutes())%60),
		"seconds":    max64(0, int64(remaining.Seconds())%60),
		"isComplete": remaining <= 0,
	}

	return RespondSuccess(c, fiber.Map{"event": event, "countdown": countdown})
}

func (s *EventService) getEvent(eventID string) (*models.Event, error) {
	var event models.Event
	if err := s.DB.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("%w: load event: %v", ErrPersistenceFailure, err)
	}
	return &event, nil
}

// CloseEvent transitions a GENERATED event to CLOSED. Closing is optional
// and one-way.
func (s *EventService) CloseEvent(c *fiber.Ctx) error {
	eventID := c.Params("id")

	if err := s.closeEvent(eventID); err != nil {
		return RespondError(c, err)
	}
	return RespondSuccess(c, fiber.Map{"status": models.EventStatusClosed})
}

func (s *EventService) closeEvent(eventID string) error {
	res := s.DB.Model(&models.Event{}).
		Where("id = ? AND status = ?", eventID, models.EventStatusGenerated).
		Update("status", models.EventStatusClosed)
	if res.Error != nil {
		return fmt.Errorf("%w: close event: %v", ErrPersistenceFailure, res.Error)
	}
	if res.RowsAffected == 0 {
		var event models.Event
		if err := s.DB.First(&event, "id = ?", eventID).Error; err != nil {
			return ErrEventNotFound
		}
		if event.Status == models.EventStatusClosed {
			return nil // already closed, nothing to do
		}
		return ErrDrawNotReady
	}
	return nil
}

// GetEventParticipants lists the deduplicated public profiles of everyone
// appearing in the event's matches.
func (s *EventService) GetEventParticipants(c *fiber.Ctx) error {
	eventID := c.Params("id")

	var matches []models.Match
	if err := s.DB.Where("event_id = ?", eventID).Find(&matches).Error; err != nil {
		log.Printf("[EVENT] DB error listing matches for %s: %v", eventID, err)
		return RespondError(c, ErrPersistenceFailure)
	}

	seen := make(map[string]bool)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		for _, id := range []string{m.GiverID, m.ReceiverID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	var participants []models.ExchangeUser
	if len(ids) > 0 {
		if err := s.DB.Select("id", "external_user_id", "name", "avatar_url").
			Where("external_user_id IN ?", ids).
			Find(&participants).Error; err != nil {
			log.Printf("[EVENT] DB error loading participants for %s: %v", eventID, err)
			return RespondError(c, ErrPersistenceFailure)
		}
	}

	return RespondSuccess(c, fiber.Map{"participants": participants, "count": len(participants)})
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
