// services/scheduler.go
package services

import (
	"errors"
	"log"
	"time"

	"valentine-exchange-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartDrawScheduler triggers the draw for auto-draw events whose draw date
// has passed. Safe to run alongside manual triggers and multiple instances:
// generation is guarded by the generate-once marker, so a second trigger is
// a no-op.
func (s *MatchService) StartDrawScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: run due auto-draw events
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(s.runDueAutoDraws),
	)
}

// runDueAutoDraws is one scheduler tick: find OPEN auto-draw events whose
// draw date has passed and generate for each. Idempotent across ticks and
// instances, the generate-once marker absorbs repeats.
func (s *MatchService) runDueAutoDraws() {
	var events []models.Event
	now := time.Now().UTC()
	err := s.DB.Where("status = ? AND auto_draw = ? AND draw_date <= ?",
		models.EventStatusOpen, true, now).
		Find(&events).Error
	if err != nil {
		log.Printf("[Scheduler] DB error: %v", err)
		return
	}

	for _, e := range events {
		summary, err := s.generateForEvent(e.ID)
		switch {
		case err == nil:
			log.Printf("✅ Auto-drew event %s: %d matches", e.ID, summary.MatchCount)
		case errors.Is(err, ErrAlreadyGenerated):
			// Another instance or a manual trigger got there first.
		case errors.Is(err, ErrInsufficientParticipants):
			log.Printf("[Scheduler] Event %s due but has fewer than 2 eligible participants", e.ID)
		default:
			log.Printf("[Scheduler] Failed to auto-draw event %s: %v", e.ID, err)
		}
	}
}
