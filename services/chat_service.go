package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"valentine-exchange-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatService carries the anonymous conversation between a matched pair.
// Only the giver and receiver of the underlying match may touch a thread.
type ChatService struct {
	DB            *gorm.DB
	Notifications *NotificationService
}

func NewChatService(db *gorm.DB, notifications *NotificationService) *ChatService {
	return &ChatService{DB: db, Notifications: notifications}
}

// GetThread returns a thread's messages in send order.
func (s *ChatService) GetThread(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	threadID := c.Params("thread_id")

	thread, _, err := s.authorizeThread(threadID, userID)
	if err != nil {
		return RespondError(c, err)
	}

	var messages []models.ChatMessage
	if err := s.DB.Where("thread_id = ?", threadID).
		Order("sent_at ASC").
		Find(&messages).Error; err != nil {
		log.Printf("[CHAT] DB error loading messages for thread %s: %v", threadID, err)
		return RespondError(c, ErrPersistenceFailure)
	}

	return RespondSuccess(c, fiber.Map{"thread": thread, "messages": messages})
}

// SendMessage posts one message into a thread and nudges the counterparty.
func (s *ChatService) SendMessage(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		ThreadID string `json:"thread_id"`
		Message  string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	msg, counterparty, err := s.sendMessage(req.ThreadID, userID, req.Message)
	if err != nil {
		return RespondError(c, err)
	}

	// Best-effort nudge; never blocks the send.
	s.Notifications.Queue(counterparty,
		models.NotificationNewMessage,
		"New message from your Valentine",
		"You have a new message in your anonymous chat",
		"/chat?threadId="+req.ThreadID)

	return RespondSuccess(c, fiber.Map{"message": msg})
}

func (s *ChatService) sendMessage(threadID, senderID, text string) (*models.ChatMessage, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", ErrEmptyMessage
	}
	if len(text) > models.MaxChatMessageLen {
		return nil, "", ErrMessageTooLong
	}

	_, match, err := s.authorizeThread(threadID, senderID)
	if err != nil {
		return nil, "", err
	}

	counterparty := match.ReceiverID
	if senderID == match.ReceiverID {
		counterparty = match.GiverID
	}

	msg := &models.ChatMessage{
		ID:       uuid.NewString(),
		ThreadID: threadID,
		SenderID: senderID,
		Text:     text,
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("%w: insert message: %v", ErrPersistenceFailure, err)
		}
		now := time.Now().UTC()
		if err := tx.Model(&models.ChatThread{}).
			Where("id = ?", threadID).
			Update("last_message_at", now).Error; err != nil {
			return fmt.Errorf("%w: bump thread: %v", ErrPersistenceFailure, err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	return msg, counterparty, nil
}

// authorizeThread loads a thread and its match, rejecting callers who are
// not one of the matched pair.
func (s *ChatService) authorizeThread(threadID, userID string) (*models.ChatThread, *models.Match, error) {
	var thread models.ChatThread
	if err := s.DB.First(&thread, "id = ?", threadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrThreadNotFound
		}
		return nil, nil, fmt.Errorf("%w: load thread: %v", ErrPersistenceFailure, err)
	}

	var match models.Match
	if err := s.DB.First(&match, "id = ?", thread.MatchID).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: load thread match: %v", ErrPersistenceFailure, err)
	}

	if match.GiverID != userID && match.ReceiverID != userID {
		return nil, nil, ErrUnauthorizedThread
	}
	return &thread, &match, nil
}
