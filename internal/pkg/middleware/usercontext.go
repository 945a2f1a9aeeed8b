package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spoqen/spoqen/app/models"
	"github.com/spoqen/spoqen/internal/pkg/database"
	"github.com/spoqen/spoqen/internal/pkg/entitlements"
	"github.com/spoqen/spoqen/internal/pkg/session"
	"github.com/spoqen/spoqen/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request.
// The tier comes session-first; on a miss it is read from the user's current
// subscription row and cached back into the session. Webhook processing
// invalidates nothing here: the session copy is a display hint, access to
// billing-sensitive operations re-reads the subscription row.
func UserContextMiddleware(c *fiber.Ctx) error {
	anonymous := usercontext.UserContext{IsLoggedIn: false, Tier: string(entitlements.TierFree)}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		c.Locals("USER_CONTEXT", anonymous)
		c.Locals(usercontext.KeyFromProtected, false)
		return c.Next()
	}

	userID, _ := sess.Get(usercontext.KeyUserID).(string)
	if userID == "" {
		c.Locals("USER_CONTEXT", anonymous)
		c.Locals(usercontext.KeyFromProtected, false)
		return c.Next()
	}

	email := session.GetSessionValue(c, usercontext.KeyUserEmail)

	tier := session.GetSessionValue(c, "user_tier")
	if tier == "" {
		tier = string(entitlements.TierFree)
		if db := database.GetDB(); db != nil {
			var sub models.Subscription
			err := db.Where("user_id = ? AND is_current = ?", userID, true).
				Order("created_at DESC").
				First(&sub).Error
			if err == nil {
				tier = string(entitlements.Normalize(sub.TierType))
			}
		}
		_ = session.SetSessionValue(c, "user_tier", tier)
	}

	c.Locals("USER_CONTEXT", usercontext.UserContext{
		UserID:     userID,
		Email:      email,
		IsLoggedIn: true,
		Tier:       tier,
	})
	c.Locals(usercontext.KeyFromProtected, true)
	c.Locals(usercontext.KeyUserID, userID)

	return c.Next()
}
