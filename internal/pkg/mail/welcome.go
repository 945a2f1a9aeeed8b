package mail

import (
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/spoqen/spoqen/app/models"
	"github.com/spoqen/spoqen/internal/pkg/entitlements"
	"github.com/spoqen/spoqen/internal/pkg/env"
)

// WelcomeNotifier sends the activation welcome email. Sending happens on a
// detached goroutine so the webhook path never waits on SMTP.
type WelcomeNotifier struct {
	db *gorm.DB
}

func NewWelcomeNotifier(db *gorm.DB) *WelcomeNotifier {
	return &WelcomeNotifier{db: db}
}

// SubscriptionActivated mails the owner of a freshly activated subscription.
func (n *WelcomeNotifier) SubscriptionActivated(userID string, tier entitlements.Tier) {
	go func() {
		var profile models.Profile
		if err := n.db.Where("id = ?", userID).First(&profile).Error; err != nil {
			log.Warnf("[Mail] No profile for user %s, skipping welcome mail: %v", userID, err)
			return
		}
		if profile.Email == "" {
			return
		}

		name := profile.FullName
		if name == "" {
			name = "there"
		}
		appName := env.GetEnv("APP_NAME", "Spoqen")
		subject := fmt.Sprintf("Your %s receptionist is on the way", appName)
		body := fmt.Sprintf(
			"<p>Hi %s,</p>"+
				"<p>Your <strong>%s</strong> plan is active. We are setting up your AI receptionist "+
				"and your dedicated phone number right now. It will appear on your dashboard in a minute or two.</p>"+
				"<p>The %s Team</p>",
			name, tier, appName,
		)

		if err := SendMail(profile.Email, subject, body); err != nil {
			log.Errorf("[Mail] Failed to send welcome mail to user %s: %v", userID, err)
		}
	}()
}
