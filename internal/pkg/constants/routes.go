package constants

// Static route constants
const (
	PublicRoute          = "/"
	HealthRoute          = "/health"
	LoginRoute           = "/login"
	LogoutRoute          = "/logout"
	CheckoutSuccessRoute = "/checkout/success"

	PaddleWebhookRoute = "/api/webhooks/paddle"

	DashboardCallsRoute        = "/api/dashboard/calls"
	DashboardSubscriptionRoute = "/api/dashboard/subscription"
	BillingCancelRoute         = "/api/billing/cancel"
	BillingPortalRoute         = "/api/billing/portal"
	AgentSettingsRoute         = "/api/settings/agent"

	InternalCallsRoute = "/api/internal/calls"
)
