package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"valentine-exchange-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MatchService orchestrates the match lifecycle: when the generator runs,
// how its one-time result is persisted, and how each giver consumes it.
// All state transitions are guarded by compare-and-swap updates on persisted
// markers, so concurrent or retried calls can never double-generate or
// double-reveal.
type MatchService struct {
	DB            *gorm.DB
	Generator     *MatchGenerator
	Notifications *NotificationService
}

func NewMatchService(db *gorm.DB, notifications *NotificationService) *MatchService {
	return &MatchService{
		DB:            db,
		Generator:     NewMatchGenerator(),
		Notifications: notifications,
	}
}

type generationSummary struct {
	EventID          string
	ParticipantCount int
	MatchCount       int

	participantIDs []string
}

// GenerateMatches is the operator trigger for the draw.
func (s *MatchService) GenerateMatches(c *fiber.Ctx) error {
	var req struct {
		EventID string `json:"event_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.EventID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "event_id is required"})
	}

	summary, err := s.generateForEvent(req.EventID)
	if err != nil {
		log.Printf("[MATCH] Generate failed for event %s: %v", req.EventID, err)
		return RespondError(c, err)
	}

	log.Printf("[MATCH] ✅ Generated %d matches for event %s (%d participants)",
		summary.MatchCount, summary.EventID, summary.ParticipantCount)

	return RespondSuccess(c, fiber.Map{
		"message":          "Matches generated successfully",
		"participantCount": summary.ParticipantCount,
		"matchCount":       summary.MatchCount,
	})
}

// generateForEvent runs the draw for one event exactly once.
//
// The whole mutation is a single transaction: the generate-once marker is
// flipped with a compare-and-swap (zero rows affected means another caller
// already won), the eligible snapshot is read, the generator runs, and the
// full assignment batch is inserted. Any failure rolls the event back to
// OPEN with zero assignments persisted. Notifications happen after commit
// and are best-effort.
func (s *MatchService) generateForEvent(eventID string) (*generationSummary, error) {
	summary := &generationSummary{EventID: eventID}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return fmt.Errorf("%w: load event: %v", ErrPersistenceFailure, err)
		}
		if event.MatchesGeneratedAt != nil {
			return ErrAlreadyGenerated
		}

		var participants []models.ExchangeUser
		if err := tx.Where("profile_complete = ?", true).
			Order("created_at ASC").
			Find(&participants).Error; err != nil {
			return fmt.Errorf("%w: load participants: %v", ErrPersistenceFailure, err)
		}
		if len(participants) < 2 {
			return ErrInsufficientParticipants
		}

		matches, err := s.Generator.Generate(participants)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Event{}).
			Where("id = ? AND matches_generated_at IS NULL", eventID).
			Updates(map[string]interface{}{
				"status":               models.EventStatusGenerated,
				"matches_generated_at": now,
				"participant_count":    len(participants),
			})
		if res.Error != nil {
			return fmt.Errorf("%w: mark generated: %v", ErrPersistenceFailure, res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent trigger.
			return ErrAlreadyGenerated
		}

		for i := range matches {
			matches[i].EventID = eventID
		}
		if err := tx.Create(&matches).Error; err != nil {
			return fmt.Errorf("%w: insert matches: %v", ErrPersistenceFailure, err)
		}

		summary.ParticipantCount = len(participants)
		summary.MatchCount = len(matches)
		summary.participantIDs = make([]string, 0, len(participants))
		for _, p := range participants {
			summary.participantIDs = append(summary.participantIDs, p.ExternalUserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Post-commit side effects. These never roll back the generation.
	s.Notifications.QueueBatch(summary.participantIDs,
		models.NotificationDrawReady,
		"It's time! 💘",
		"Draw your Valentine now!",
		"/live-picker")
	s.Notifications.LogActivity("", eventID, "MATCHES_GENERATED",
		map[string]interface{}{"participant_count": summary.ParticipantCount})

	return summary, nil
}

type revealResult struct {
	MatchID      string
	Receiver     models.ExchangeUser
	AssignedAt   time.Time
	RevealedAt   time.Time
	ChatThreadID string
}

// RevealMatch lets the caller learn their assigned receiver, exactly once.
func (s *MatchService) RevealMatch(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		EventID string `json:"event_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.EventID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "event_id is required"})
	}

	result, err := s.revealForGiver(req.EventID, userID)
	if err != nil {
		log.Printf("[MATCH] Reveal failed for giver %s in event %s: %v", userID, req.EventID, err)
		return RespondError(c, err)
	}

	return RespondSuccess(c, fiber.Map{
		"match": fiber.Map{
			"id":           result.MatchID,
			"valentine":    result.Receiver,
			"assignedAt":   result.AssignedAt,
			"revealedAt":   result.RevealedAt,
			"chatThreadId": result.ChatThreadID,
		},
	})
}

// revealForGiver marks the giver's assignment revealed and provisions the
// chat thread, atomically. The revealed-at stamp is a compare-and-swap on
// the single match row: a second call, sequential or concurrent, fails
// with ErrAlreadyRevealed and mutates nothing. The thread is get-or-create
// keyed by match id, so a retried reveal after a transient failure never
// duplicates the channel.
func (s *MatchService) revealForGiver(eventID, giverID string) (*revealResult, error) {
	result := &revealResult{}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return fmt.Errorf("%w: load event: %v", ErrPersistenceFailure, err)
		}
		if event.Status != models.EventStatusGenerated {
			return ErrDrawNotReady
		}

		var match models.Match
		if err := tx.Where("event_id = ? AND giver_id = ?", eventID, giverID).
			First(&match).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoMatchAssigned
			}
			return fmt.Errorf("%w: load match: %v", ErrPersistenceFailure, err)
		}
		if match.RevealedAt != nil {
			return ErrAlreadyRevealed
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Match{}).
			Where("id = ? AND revealed_at IS NULL", match.ID).
			Update("revealed_at", now)
		if res.Error != nil {
			return fmt.Errorf("%w: mark revealed: %v", ErrPersistenceFailure, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyRevealed
		}

		var thread models.ChatThread
		if err := tx.Where(models.ChatThread{MatchID: match.ID}).
			Attrs(models.ChatThread{ID: uuid.NewString()}).
			FirstOrCreate(&thread).Error; err != nil {
			return fmt.Errorf("%w: provision chat thread: %v", ErrPersistenceFailure, err)
		}

		var receiver models.ExchangeUser
		if err := tx.Preload("WishlistItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).Where("external_user_id = ?", match.ReceiverID).
			First(&receiver).Error; err != nil {
			return fmt.Errorf("%w: load receiver profile: %v", ErrPersistenceFailure, err)
		}

		result.MatchID = match.ID
		result.Receiver = receiver
		result.AssignedAt = match.AssignedAt
		result.RevealedAt = now
		result.ChatThreadID = thread.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Best-effort: tell the receiver their name has been drawn (without
	// saying by whom) and log the reveal.
	s.Notifications.Queue(result.Receiver.ExternalUserID,
		models.NotificationMatchRevealed,
		"Someone drew your name 💌",
		"Your Secret Valentine just drew you. Keep an eye on your chat!",
		"/chat")
	s.Notifications.LogActivity(giverID, eventID, "MATCH_REVEALED", nil)

	return result, nil
}

// GetMatchStatus reports the caller's own draw state plus the event-wide
// reveal counter used for social proof.
func (s *MatchService) GetMatchStatus(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	eventID := c.Query("event_id")
	if eventID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "event_id is required"})
	}

	var match models.Match
	assigned := true
	err := s.DB.Where("event_id = ? AND giver_id = ?", eventID, userID).First(&match).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[MATCH] DB error loading status for %s: %v", userID, err)
			return RespondError(c, ErrPersistenceFailure)
		}
		assigned = false
	}

	var revealsCount int64
	if err := s.DB.Model(&models.Match{}).
		Where("event_id = ? AND revealed_at IS NOT NULL", eventID).
		Count(&revealsCount).Error; err != nil {
		log.Printf("[MATCH] DB error counting reveals for %s: %v", eventID, err)
		return RespondError(c, ErrPersistenceFailure)
	}

	resp := fiber.Map{
		"assigned":     assigned,
		"revealed":     assigned && match.RevealedAt != nil,
		"revealsCount": revealsCount,
	}
	if assigned && match.RevealedAt != nil {
		resp["revealedAt"] = match.RevealedAt
	}
	return RespondSuccess(c, resp)
}

// GetRevealedMatch is the idempotent read path for a match that was already
// revealed. Callers bounced with ErrAlreadyRevealed fetch their result here;
// it never mutates anything.
func (s *MatchService) GetRevealedMatch(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	eventID := c.Query("event_id")
	if eventID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "event_id is required"})
	}

	result, revealed, err := s.revealedMatchForGiver(eventID, userID)
	if err != nil {
		return RespondError(c, err)
	}
	if !revealed {
		return RespondSuccess(c, fiber.Map{"revealed": false})
	}

	return RespondSuccess(c, fiber.Map{
		"revealed": true,
		"match": fiber.Map{
			"id":           result.MatchID,
			"valentine":    result.Receiver,
			"assignedAt":   result.AssignedAt,
			"revealedAt":   result.RevealedAt,
			"chatThreadId": result.ChatThreadID,
		},
	})
}

func (s *MatchService) revealedMatchForGiver(eventID, giverID string) (*revealResult, bool, error) {
	var match models.Match
	if err := s.DB.Where("event_id = ? AND giver_id = ?", eventID, giverID).
		First(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrNoMatchAssigned
		}
		return nil, false, fmt.Errorf("%w: load match: %v", ErrPersistenceFailure, err)
	}
	if match.RevealedAt == nil {
		return nil, false, nil
	}

	var receiver models.ExchangeUser
	if err := s.DB.Preload("WishlistItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC")
	}).Where("external_user_id = ?", match.ReceiverID).
		First(&receiver).Error; err != nil {
		return nil, false, fmt.Errorf("%w: load receiver profile: %v", ErrPersistenceFailure, err)
	}

	var thread models.ChatThread
	threadID := ""
	if err := s.DB.Where("match_id = ?", match.ID).First(&thread).Error; err == nil {
		threadID = thread.ID
	}

	return &revealResult{
		MatchID:      match.ID,
		Receiver:     receiver,
		AssignedAt:   match.AssignedAt,
		RevealedAt:   *match.RevealedAt,
		ChatThreadID: threadID,
	}, true, nil
}

// GetEventAssignments is the admin view of the full assignment set.
func (s *MatchService) GetEventAssignments(c *fiber.Ctx) error {
	eventID := c.Params("id")

	var matches []models.Match
	if err := s.DB.Where("event_id = ?", eventID).
		Order("assigned_at ASC").
		Find(&matches).Error; err != nil {
		log.Printf("[MATCH] DB error listing assignments for %s: %v", eventID, err)
		return RespondError(c, ErrPersistenceFailure)
	}

	return RespondSuccess(c, fiber.Map{"assignments": matches, "count": len(matches)})
}

// GetRevealStats is the admin reveal-progress counter.
func (s *MatchService) GetRevealStats(c *fiber.Ctx) error {
	eventID := c.Params("id")

	var event models.Event
	if err := s.DB.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RespondError(c, ErrEventNotFound)
		}
		return RespondError(c, ErrPersistenceFailure)
	}

	var total, revealed int64
	if err := s.DB.Model(&models.Match{}).Where("event_id = ?", eventID).
		Count(&total).Error; err != nil {
		return RespondError(c, ErrPersistenceFailure)
	}
	if err := s.DB.Model(&models.Match{}).
		Where("event_id = ? AND revealed_at IS NOT NULL", eventID).
		Count(&revealed).Error; err != nil {
		return RespondError(c, ErrPersistenceFailure)
	}

	percent := 0
	if total > 0 {
		percent = int(revealed * 100 / total)
	}

	return RespondSuccess(c, fiber.Map{
		"totalParticipants": total,
		"revealedCount":     revealed,
		"percentRevealed":   percent,
		"generationTime":    event.MatchesGeneratedAt,
	})
}
