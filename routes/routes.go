package routes

import (
	"github.com/gofiber/fiber/v2"

	"whalewatch-backend/controllers"
	"whalewatch-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/register", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard FIRST (not tied to the request TX)
	protected.Use(middlewares.Idempotency())

	// Then the per-request transaction for mutations
	protected.Use(middlewares.RequestTx())

	// Wallet registry
	protected.Get("/wallets-list", controllers.ListWallets)
	protected.Post("/wallets-add-watch", controllers.AddWatch)
	protected.Post("/wallets-remove", controllers.RemoveWallet)
	protected.Post("/wallets-remove-address", controllers.RemoveAddress)
	protected.Post("/wallets-set-primary", controllers.SetPrimary)
	protected.Post("/wallets-update-label", controllers.UpdateLabel)

	// Active selection restore
	protected.Post("/selection-resolve", controllers.ResolveSelection)
	protected.Post("/selection-switch-network", controllers.SwitchNetwork)

	// Page routes: public login page, session-gated app pages.
	app.Get("/login", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "login required", "next": c.Query("next")})
	})
	appPages := app.Group("/app", middlewares.RequireSession())
	appPages.Get("/*", func(c *fiber.Ctx) error {
		userID, _ := c.Locals("userID").(string)
		return c.JSON(fiber.Map{"message": "ok", "user_id": userID})
	})
}
