package middlewares

import (
	"net/url"

	"whalewatch-backend/utils"

	"github.com/gofiber/fiber/v2"
)

const loginPath = "/login"

// RequireSession guards page routes. Unauthenticated visitors are redirected
// to the login page carrying a validated next param; anything that is not a
// plain same-origin path falls back to the default so the login page can never
// be used as an open redirector.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := SessionClaims(c)
		if !ok {
			next := utils.GetSafeRedirect(c.OriginalURL(), "/app")
			return c.Redirect(loginPath+"?next="+url.QueryEscape(next), fiber.StatusFound)
		}

		c.Locals("userID", claims.Subject)
		c.Locals("plan", claims.Plan)
		return c.Next()
	}
}
