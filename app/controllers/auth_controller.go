package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/spoqen/spoqen/internal/pkg/identity"
	"github.com/spoqen/spoqen/internal/pkg/session"
	"github.com/spoqen/spoqen/internal/pkg/usercontext"
)

type loginRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
	Email  string `json:"email" validate:"required,email"`
}

var loginValidate = validator.New()

// HandleLogin establishes the dashboard session after the auth provider
// has signed the user in. The posted identity is checked against the
// identity service before anything is stored.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	if err := loginValidate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := identity.NewClientFromEnv().GetUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unknown_user"})
		}
		log.Errorf("[Auth] Identity lookup failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "identity_unavailable"})
	}
	if !strings.EqualFold(strings.TrimSpace(user.Email), strings.TrimSpace(req.Email)) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "identity_mismatch"})
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		log.Errorf("[Auth] Session load failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "session_unavailable"})
	}
	if err := sess.Regenerate(); err != nil {
		log.Errorf("[Auth] Session regenerate failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "session_unavailable"})
	}
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUserEmail, user.Email)
	if err := sess.Save(); err != nil {
		log.Errorf("[Auth] Session save failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "session_unavailable"})
	}

	return c.JSON(fiber.Map{"ok": true})
}

// HandleLogout destroys the session.
func HandleLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		_ = sess.Destroy()
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}
