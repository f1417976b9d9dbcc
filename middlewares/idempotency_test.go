package middlewares

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"whalewatch-backend/database"
	"whalewatch-backend/models"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// useTestDB swaps the shared handle for a throwaway in-memory database so the
// middleware's short transactions have somewhere to go.
func useTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Wallet{}, &models.IdempotencyKey{}))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })
	return db
}

func newIdempotencyApp(counter *int32, handlerDelay time.Duration) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Locals("userID", "user-1")
		return c.Next()
	}, Idempotency())
	api.Post("/wallets-add-watch", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(counter, 1)
		if handlerDelay > 0 {
			time.Sleep(handlerDelay)
		}
		return c.JSON(fiber.Map{"run": n})
	})
	return app
}

func postWithKey(key string) *http.Request {
	req := httptest.NewRequest("POST", "/api/wallets-add-watch", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	useTestDB(t)
	var counter int32
	app := newIdempotencyApp(&counter, 0)

	resp1, err := app.Test(postWithKey("key-1"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp1.StatusCode)
	body1 := readBody(t, resp1)

	resp2, err := app.Test(postWithKey("key-1"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp2.StatusCode)
	assert.Equal(t, body1, readBody(t, resp2), "replay must return the stored body")
	assert.EqualValues(t, 1, atomic.LoadInt32(&counter), "handler must run once per key")

	resp3, err := app.Test(postWithKey("key-2"))
	require.NoError(t, err)
	assert.NotEqual(t, body1, readBody(t, resp3))
	assert.EqualValues(t, 2, atomic.LoadInt32(&counter))
}

func TestIdempotencyWithoutKeyRunsEveryTime(t *testing.T) {
	useTestDB(t)
	var counter int32
	app := newIdempotencyApp(&counter, 0)

	for i := 0; i < 3; i++ {
		resp, err := app.Test(postWithKey(""))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&counter))
}

func TestIdempotencyExpiredEntryRunsHandlerAgain(t *testing.T) {
	db := useTestDB(t)
	var counter int32
	app := newIdempotencyApp(&counter, 0)

	resp, err := app.Test(postWithKey("key-1"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// age the entry past the TTL
	require.NoError(t, db.Model(&models.IdempotencyKey{}).
		Where("key = ?", "key-1").
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	resp, err = app.Test(postWithKey("key-1"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&counter), "an evicted key runs the handler fresh")
}

func TestIdempotencyKeyReuseWithDifferentRequestConflicts(t *testing.T) {
	useTestDB(t)
	var counter int32
	app := newIdempotencyApp(&counter, 0)

	resp, err := app.Test(postWithKey("key-1"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// same key, different path, so a different request fingerprint
	app2 := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	api := app2.Group("/api", func(c *fiber.Ctx) error {
		c.Locals("userID", "user-1")
		return c.Next()
	}, Idempotency())
	api.Post("/wallets-remove", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	req := httptest.NewRequest("POST", "/api/wallets-remove", nil)
	req.Header.Set("Idempotency-Key", "key-1")
	resp, err = app2.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestIdempotencyErrorReleasesClaimForRetry(t *testing.T) {
	useTestDB(t)
	var counter int32

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Locals("userID", "user-1")
		return c.Next()
	}, Idempotency())
	api.Post("/flaky", func(c *fiber.Ctx) error {
		if atomic.AddInt32(&counter, 1) == 1 {
			return models.ErrInvalidAddress("first attempt rejected")
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	post := func() *http.Request {
		req := httptest.NewRequest("POST", "/api/flaky", nil)
		req.Header.Set("Idempotency-Key", "key-1")
		return req
	}

	resp, err := app.Test(post())
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	// errors are not cached; the retry runs the handler and succeeds
	resp, err = app.Test(post())
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&counter))
}

func TestIdempotencyConcurrentSameKeyRunsHandlerOnce(t *testing.T) {
	useTestDB(t)
	var counter int32
	app := newIdempotencyApp(&counter, 300*time.Millisecond)

	const callers = 2
	var wg sync.WaitGroup
	errs := make([]error, callers)
	statuses := make([]int, callers)
	bodies := make([][]byte, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := app.Test(postWithKey("key-1"), 10_000)
			if err != nil {
				errs[i] = err
				return
			}
			statuses[i] = resp.StatusCode
			bodies[i], errs[i] = io.ReadAll(resp.Body)
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&counter), "one effect for concurrent callers of one key")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fiber.StatusOK, statuses[i])
		assert.Equal(t, string(bodies[0]), string(bodies[i]), "every caller sees the same stored payload")
	}
}
