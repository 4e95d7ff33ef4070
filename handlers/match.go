package handlers

import (
	"valentine-exchange-system/middleware"
	"valentine-exchange-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchRoutes(app *fiber.App, matchService *services.MatchService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Draw lifecycle for the caller
	secured.Post("/matches/reveal", matchService.RevealMatch)
	secured.Get("/matches/status", matchService.GetMatchStatus)
	secured.Get("/matches/revealed", matchService.GetRevealedMatch)

	// 🔒 Admin-only routes
	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Post("/matches/generate", matchService.GenerateMatches)
	admin.Get("/events/:id/assignments", matchService.GetEventAssignments)
	admin.Get("/events/:id/reveal-stats", matchService.GetRevealStats)
}
