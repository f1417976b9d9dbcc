package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// the secret loads once per process, so it must exist before any parse
	os.Setenv("JWT_SECRET", "test-secret")
	os.Exit(m.Run())
}

func newTestApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})

	api := app.Group("/api", IsAuthenticatedHeader())
	api.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id": c.Locals("userID"),
			"plan":    c.Locals("plan"),
		})
	})

	app.Get("/login", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"next": c.Query("next")})
	})
	pages := app.Group("/app", RequireSession())
	pages.Get("/*", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func decodeErrorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error.Code
}

func TestAPIRejectsMissingBearer(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("GET", "/api/whoami", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", decodeErrorCode(t, resp))
}

func TestAPIRejectsGarbageBearer(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("GET", "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAPIAcceptsValidBearerAndExposesClaims(t *testing.T) {
	app := newTestApp()

	token, err := GenerateJWT("user-1", "pro")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "user-1", body["user_id"])
	assert.Equal(t, "pro", body["plan"])
}

func TestPageRouteRedirectsAnonymousWithNextParam(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("GET", "/app/wallets", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Fapp%2Fwallets", resp.Header.Get("Location"))
}

func TestPageRouteAllowsSessionCookie(t *testing.T) {
	app := newTestApp()

	token, err := GenerateJWT("user-1", "free")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/app/wallets", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestPageRouteRedirectsExpiredCookie(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("GET", "/app/wallets", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: "garbage"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
}
