package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spoqen/spoqen/app/controllers"
	"github.com/spoqen/spoqen/internal/pkg/constants"
	"github.com/spoqen/spoqen/internal/pkg/middleware"
	"github.com/spoqen/spoqen/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get(constants.HealthRoute, controllers.HandleHealth)

	// Auth
	app.Post(constants.LoginRoute, controllers.HandleLogin)
	app.Post(constants.LogoutRoute, middleware.RequireAuth, controllers.HandleLogout)

	// Checkout return path (parameter validation is the gate)
	app.Get(constants.CheckoutSuccessRoute, controllers.HandleCheckoutSuccess)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
