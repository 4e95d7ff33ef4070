package services

import (
	"encoding/json"
	"log"
	"time"

	"valentine-exchange-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationService owns in-app notifications and the activity log.
// Queue and LogActivity are best-effort: delivery problems are logged and
// never propagated, so they can't roll back the state transition that
// triggered them.
type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// Queue inserts one notification row. The notification worker picks up
// undispatched rows and forwards them to the email relay.
func (s *NotificationService) Queue(userID, notifType, title, message, actionURL string) {
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		ActionURL: actionURL,
	}
	if err := s.DB.Create(&n).Error; err != nil {
		log.Printf("[NOTIFY] ⚠️ Failed to queue %s notification for user %s: %v", notifType, userID, err)
	}
}

// QueueBatch inserts notifications for many users in one statement.
func (s *NotificationService) QueueBatch(userIDs []string, notifType, title, message, actionURL string) {
	if len(userIDs) == 0 {
		return
	}
	rows := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, models.Notification{
			ID:        uuid.NewString(),
			UserID:    id,
			Type:      notifType,
			Title:     title,
			Message:   message,
			ActionURL: actionURL,
		})
	}
	if err := s.DB.Create(&rows).Error; err != nil {
		log.Printf("[NOTIFY] ⚠️ Failed to queue %d %s notifications: %v", len(rows), notifType, err)
	}
}

// LogActivity appends to the audit trail. userID may be empty for system
// actions.
func (s *NotificationService) LogActivity(userID, eventID, action string, metadata map[string]interface{}) {
	row := models.ActivityLog{
		ID:      uuid.NewString(),
		EventID: eventID,
		Action:  action,
	}
	if userID != "" {
		row.UserID = &userID
	}
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			row.Metadata = string(b)
		}
	}
	if err := s.DB.Create(&row).Error; err != nil {
		log.Printf("[NOTIFY] ⚠️ Failed to log activity %s: %v", action, err)
	}
}

// ListNotifications returns the caller's notifications, newest first.
func (s *NotificationService) ListNotifications(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var rows []models.Notification
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(50).
		Find(&rows).Error; err != nil {
		log.Printf("[NOTIFY] DB error listing notifications for %s: %v", userID, err)
		return RespondError(c, ErrPersistenceFailure)
	}

	return RespondSuccess(c, fiber.Map{"notifications": rows, "count": len(rows)})
}

// MarkNotificationRead stamps ReadAt once; repeated calls keep the first
// timestamp.
func (s *NotificationService) MarkNotificationRead(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	notifID := c.Params("id")

	now := time.Now().UTC()
	res := s.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", notifID, userID).
		Update("read_at", now)
	if res.Error != nil {
		log.Printf("[NOTIFY] DB error marking notification %s read: %v", notifID, res.Error)
		return RespondError(c, ErrPersistenceFailure)
	}

	return RespondSuccess(c, fiber.Map{"updated": res.RowsAffected > 0})
}
