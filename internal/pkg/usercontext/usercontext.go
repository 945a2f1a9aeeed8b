package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext represents the complete user context for a request. UserID is
// the auth provider's UUID; Tier is the access-control tier derived from the
// user's current subscription row.
type UserContext struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	IsLoggedIn bool   `json:"is_logged_in"`
	Tier       string `json:"tier"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals("USER_CONTEXT"); ctx != nil {
		return ctx.(UserContext)
	}
	return UserContext{IsLoggedIn: false, Tier: "free"}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// GetUserID returns the current user's ID, or empty string if not logged in
func GetUserID(c *fiber.Ctx) string {
	return GetUserContext(c).UserID
}

// GetTier returns the current user's subscription tier
func GetTier(c *fiber.Ctx) string {
	return GetUserContext(c).Tier
}
