package handlers

import (
	"valentine-exchange-system/middleware"
	"valentine-exchange-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChatRoutes(app *fiber.App, chatService *services.ChatService, notificationService *services.NotificationService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/chat/threads/:thread_id", chatService.GetThread)
	secured.Post("/chat/messages", chatService.SendMessage)

	secured.Get("/notifications", notificationService.ListNotifications)
	secured.Patch("/notifications/:id/read", notificationService.MarkNotificationRead)
}
