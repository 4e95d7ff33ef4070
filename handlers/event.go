package handlers

import (
	"valentine-exchange-system/middleware"
	"valentine-exchange-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupEventRoutes(app *fiber.App, eventService *services.EventService, participantService *services.ParticipantService) {
	// 🔓 Public event info (countdown page)
	app.Get("/events/:id", eventService.GetEvent)
	app.Get("/events/:id/participants", eventService.GetEventParticipants)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/users/me", participantService.GetMyProfile)
	secured.Get("/users/me/wishlist", participantService.GetMyWishlist)
	secured.Post("/users/me/wishlist", participantService.AddWishlistItem)
	secured.Delete("/users/me/wishlist/:id", participantService.DeleteWishlistItem)

	secured.Post("/invites", participantService.CreateInvite)
	secured.Get("/invites/:code", participantService.ValidateInvite)
	secured.Post("/invites/:code/redeem", participantService.RedeemInvite)

	// 🔒 Admin-only routes
	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Post("/events", eventService.CreateEvent)
	admin.Patch("/events/:id/close", eventService.CloseEvent)
}
