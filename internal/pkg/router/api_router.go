package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/spoqen/spoqen/app/controllers"
	"github.com/spoqen/spoqen/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max: 120,
		// Webhook redeliveries and dashboard polling both burst; keep the
		// window short instead of raising the cap.
		Expiration: 30 * time.Second,
	}))

	// Billing provider webhooks (no session, signature-verified in controller)
	api.Post("/webhooks/paddle", controllers.HandlePaddleWebhook)

	// Dashboard (session required)
	dashboard := api.Group("/dashboard", middleware.RequireAPISessionAuth)
	dashboard.Get("/calls", controllers.HandleDashboardCalls)
	dashboard.Get("/subscription", controllers.HandleDashboardSubscription)

	// Billing management (session required)
	billing := api.Group("/billing", middleware.RequireAPISessionAuth)
	billing.Post("/cancel", controllers.HandleBillingCancel)
	billing.Get("/portal", controllers.HandleBillingPortal)

	// Agent settings (session required)
	settings := api.Group("/settings", middleware.RequireAPISessionAuth)
	settings.Get("/agent", controllers.HandleAgentSettingsGet)
	settings.Put("/agent", controllers.HandleAgentSettingsPut)

	// Internal service-to-service endpoints (shared key)
	internal := api.Group("/internal", middleware.InternalAPIKeyMiddleware())
	internal.Post("/calls", controllers.HandleInternalCallIngest)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
