// workers/notification_worker.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"valentine-exchange-system/models"
	"valentine-exchange-system/utils"

	"gorm.io/gorm"
)

// EmailRelayClient forwards queued notifications to the external email
// relay. Delivery is best-effort: a failed dispatch stays queued and is
// retried on the next tick.
type EmailRelayClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewEmailRelayClient(db *gorm.DB) *EmailRelayClient {
	baseURL := os.Getenv("EMAIL_RELAY_URL")
	if baseURL == "" {
		log.Fatal("EMAIL_RELAY_URL environment variable is required")
	}
	token := os.Getenv("VALENTINE_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("VALENTINE_SERVICE_TOKEN environment variable is required for notification dispatch")
	}

	return &EmailRelayClient{
		BaseURL:    baseURL,
		Token:      token,
		DB:         db,
		HTTPClient: utils.HTTPClient,
	}
}

type relayPayload struct {
	To        string `json:"to"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	ActionURL string `json:"action_url,omitempty"`
}

// send posts one notification to the relay.
func (c *EmailRelayClient) send(ctx context.Context, n models.Notification, user models.ExchangeUser) error {
	body, err := json.Marshal(relayPayload{
		To:        user.Email,
		Name:      user.Name,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		ActionURL: n.ActionURL,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal relay payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call email relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("email relay returned status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// PollNotifications drains the undispatched notification queue on an
// interval. Each row is stamped DispatchedAt only after the relay accepted
// it, so crashes or relay outages never lose a notification. At-least-once
// is the contract here, the relay deduplicates.
func PollNotifications(ctx context.Context, client *EmailRelayClient, pollInterval time.Duration) {
	log.Println("Starting notification dispatch polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Notification polling stopped.")
			return
		case <-ticker.C:
			var pending []models.Notification
			err := client.DB.Where("dispatched_at IS NULL").
				Order("created_at ASC").
				Limit(100).
				Find(&pending).Error
			if err != nil {
				log.Printf("❌ Error loading pending notifications: %v", err)
				continue
			}
			if len(pending) == 0 {
				continue
			}

			log.Printf("📤 Dispatching %d pending notification(s)...", len(pending))

			var sent int
			for _, n := range pending {
				var user models.ExchangeUser
				if err := client.DB.Where("external_user_id = ?", n.UserID).
					First(&user).Error; err != nil {
					log.Printf("⚠️ Skipping notification %s: recipient %s not in mirror: %v", n.ID, n.UserID, err)
					continue
				}

				if err := client.send(ctx, n, user); err != nil {
					// Leave undispatched; retried next tick.
					log.Printf("❌ Failed to dispatch notification %s to %s: %v", n.ID, user.Email, err)
					continue
				}

				now := time.Now().UTC()
				if err := client.DB.Model(&models.Notification{}).
					Where("id = ? AND dispatched_at IS NULL", n.ID).
					Update("dispatched_at", now).Error; err != nil {
					log.Printf("⚠️ Dispatched notification %s but failed to mark it: %v", n.ID, err)
					continue
				}
				sent++
			}

			log.Printf("✅ Dispatched %d/%d notification(s).", sent, len(pending))
		}
	}
}
