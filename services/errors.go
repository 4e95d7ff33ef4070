package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Typed errors for the matching core. Handlers never expose raw storage
// errors; everything crossing the HTTP boundary goes through one of these.
var (
	// ErrInsufficientParticipants: fewer than 2 eligible participants at
	// generation time. Not retryable until more participants register.
	ErrInsufficientParticipants = errors.New("need at least 2 participants for matching")

	// ErrAlreadyGenerated: generation attempted twice for one event.
	// A guard, not a fault: callers should treat it as "already done".
	ErrAlreadyGenerated = errors.New("matches already generated for this event")

	// ErrDrawNotReady: reveal attempted before generation.
	ErrDrawNotReady = errors.New("the draw has not started yet")

	// ErrNoMatchAssigned: caller was not in the snapshot at generation time.
	ErrNoMatchAssigned = errors.New("no match assigned for this account")

	// ErrAlreadyRevealed: reveal attempted twice. The revealed-match read
	// path serves the existing result; a second reveal never mutates state.
	ErrAlreadyRevealed = errors.New("match already revealed")

	// ErrPersistenceFailure: transient storage error. Safe to retry: the
	// generate-once and reveal-once markers make retries idempotent.
	ErrPersistenceFailure = errors.New("storage operation failed")
)

// Errors for the surrounding exchange features.
var (
	ErrEventNotFound      = errors.New("event not found")
	ErrEventExists        = errors.New("event already exists")
	ErrThreadNotFound     = errors.New("chat thread not found")
	ErrUnauthorizedThread = errors.New("no access to this chat thread")
	ErrMessageTooLong     = errors.New("message exceeds maximum length")
	ErrEmptyMessage       = errors.New("message cannot be empty")
	ErrWishlistLimit      = errors.New("wishlist item limit reached")
	ErrInviteInvalid      = errors.New("invalid or expired invite code")
)

type errorInfo struct {
	Status  int
	Code    string
	Message string
	Action  string
}

var errorTable = []struct {
	Err  error
	Info errorInfo
}{
	{ErrInsufficientParticipants, errorInfo{400, "MATCH004", "Need at least 2 participants for matching", "Wait for more people to register"}},
	{ErrAlreadyGenerated, errorInfo{409, "MATCH005", "Matches were already generated for this event", "Nothing to do, the draw is live"}},
	{ErrDrawNotReady, errorInfo{400, "MATCH002", "The draw hasn't started yet", "Check back on draw day"}},
	{ErrNoMatchAssigned, errorInfo{404, "MATCH003", "No match found for your account", "Contact support"}},
	{ErrAlreadyRevealed, errorInfo{400, "MATCH001", "You already drew your Valentine", "View your match"}},
	{ErrPersistenceFailure, errorInfo{500, "SYS001", "Something went wrong on our end", "Please try again in a moment"}},
	{ErrEventNotFound, errorInfo{404, "EVENT002", "Event not found", "Check the event link"}},
	{ErrEventExists, errorInfo{409, "EVENT001", "An event with this name already exists", "Pick a different name"}},
	{ErrThreadNotFound, errorInfo{404, "CHAT004", "Chat thread not found", "Return to home"}},
	{ErrUnauthorizedThread, errorInfo{403, "CHAT001", "You don't have access to this chat", "Return to your match"}},
	{ErrMessageTooLong, errorInfo{400, "CHAT002", "Message exceeds 1000 characters", "Shorten your message"}},
	{ErrEmptyMessage, errorInfo{400, "CHAT005", "Message cannot be empty", "Write something first"}},
	{ErrWishlistLimit, errorInfo{400, "PROFILE002", "Maximum 10 wishlist items allowed", "Remove some items to add more"}},
	{ErrInviteInvalid, errorInfo{400, "AUTH003", "Invalid or expired invite code", "Request a new invitation"}},
}

// RespondError maps a typed service error onto the JSON error shape the
// frontend expects. Unknown errors collapse to a generic 500.
func RespondError(c *fiber.Ctx, err error) error {
	for _, entry := range errorTable {
		if errors.Is(err, entry.Err) {
			return c.Status(entry.Info.Status).JSON(fiber.Map{
				"success": false,
				"error": fiber.Map{
					"code":    entry.Info.Code,
					"message": entry.Info.Message,
					"action":  entry.Info.Action,
				},
			})
		}
	}
	return c.Status(500).JSON(fiber.Map{
		"success": false,
		"error": fiber.Map{
			"code":    "SYS001",
			"message": "Something went wrong on our end",
			"action":  "Please try again in a moment",
		},
	})
}

// RespondSuccess wraps data in the success envelope.
func RespondSuccess(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}
