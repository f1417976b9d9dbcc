package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"whalewatch-backend/database"
	"whalewatch-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	pendingPollInterval = 50 * time.Millisecond
	pendingPollMax      = 5 * time.Second
)

// Idempotency processes the Idempotency-Key header for mutating HTTP methods.
// Exactly one request per key runs the handler: the first caller to insert the
// key row owns the execution, every concurrent caller with the same key waits
// for the stored response and replays it, so all callers see one identical
// payload for one underlying effect. A completed entry younger than
// models.IdempotencyTTL replays without running the handler; an expired entry
// is evicted and the handler runs again under the same key. Entries use their
// own short transactions so they survive a rolled-back request TX, and the
// unique index on the key column gives per-key (not global) granularity.
func Idempotency() fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get("Idempotency-Key"))
		if key == "" {
			return c.Next()
		}
		if len(key) > 128 {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key too long")
		}

		userID, _ := c.Locals("userID").(string)
		if userID == "" {
			return models.ErrUnauthorized("auth context missing")
		}

		path := c.OriginalURL() // includes query string
		body := c.Body()

		// Build deterministic request hash: method|path|body|user
		h := sha256.New()
		h.Write([]byte(method))
		h.Write([]byte{'\n'})
		h.Write([]byte(path))
		h.Write([]byte{'\n'})
		h.Write(body)
		h.Write([]byte{'\n'})
		h.Write([]byte(userID))
		reqHash := hex.EncodeToString(h.Sum(nil))

		// ---- Phase 1: claim the key or find who holds it, under a short TX.
		// The unique index on key makes exactly one concurrent caller the owner.
		owner := false
		var replayStatus int
		var replayBody []byte
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			now := time.Now().UTC()

			var existing models.IdempotencyKey
			if err := tx.Where("key = ?", key).First(&existing).Error; err != nil {
				if err != gorm.ErrRecordNotFound {
					return fiber.NewError(fiber.StatusInternalServerError, "idempotency lookup failed")
				}
			} else if existing.Expired(now) {
				// Aged out: evict and treat as unseen. The wallet table's own
				// unique indexes still stop a true duplicate from landing.
				if err := tx.Delete(&models.IdempotencyKey{}, existing.ID).Error; err != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "idempotency evict failed")
				}
				existing = models.IdempotencyKey{}
			}

			if existing.ID == 0 {
				rec := models.IdempotencyKey{
					Key:            key,
					RequestHash:    reqHash,
					Method:         method,
					Path:           path,
					UserID:         userID,
					ResponseStatus: 0,
					ExpiresAt:      now.Add(models.IdempotencyTTL),
				}
				if e2 := tx.Create(&rec).Error; e2 == nil {
					owner = true
					return nil
				}
				// Unique race with a concurrent caller: read the winner
				if e3 := tx.Where("key = ?", key).First(&existing).Error; e3 != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "idempotency create failed")
				}
			}

			// Same key must mean the same request
			if existing.RequestHash != reqHash {
				return fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
			}
			if existing.ResponseStatus != 0 && existing.ResponseBody != nil {
				replayStatus = existing.ResponseStatus
				replayBody = existing.ResponseBody
			}
			return nil
		})
		if err != nil {
			return err
		}

		if !owner {
			// Another caller holds this key. Replay its stored response,
			// waiting for completion if it is still in flight.
			if replayBody == nil {
				replayStatus, replayBody, err = awaitCompletion(key, reqHash)
				if err != nil {
					return err
				}
			}
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(replayStatus).Send(replayBody)
		}

		// We own the key: run the handler exactly once.
		if err := c.Next(); err != nil {
			// Release the pending claim so a retry with the same key can run;
			// errors are never cached for replay.
			_ = database.DB.Where("key = ? AND response_status = 0", key).
				Delete(&models.IdempotencyKey{}).Error
			return err
		}

		// ---- Phase 2: store the response under another short TX. The
		// response_status guard means only the still-pending claim is written,
		// never a completed entry someone else already filled.
		_ = database.DB.Transaction(func(tx *gorm.DB) error {
			now := time.Now().UTC()
			status := c.Response().StatusCode()
			resp := c.Response().Body()
			blob := make([]byte, len(resp))
			copy(blob, resp)

			return tx.Model(&models.IdempotencyKey{}).
				Where("key = ? AND response_status = 0", key).
				Updates(map[string]any{
					"response_status": status,
					"response_body":   blob,
					"completed_at":    &now,
					"expires_at":      now.Add(models.IdempotencyTTL),
				}).Error
		})

		return nil
	}
}

// awaitCompletion polls for the owner's stored response. If the owner fails
// and releases the claim, or never finishes within the window, the caller is
// told to retry with the same key.
func awaitCompletion(key, reqHash string) (int, []byte, error) {
	deadline := time.Now().Add(pendingPollMax)
	for time.Now().Before(deadline) {
		time.Sleep(pendingPollInterval)

		var entry models.IdempotencyKey
		if err := database.DB.Where("key = ?", key).First(&entry).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				// owner errored out and released the claim
				break
			}
			return 0, nil, fiber.NewError(fiber.StatusInternalServerError, "idempotency lookup failed")
		}
		if entry.RequestHash != reqHash {
			return 0, nil, fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
		}
		if entry.ResponseStatus != 0 && entry.ResponseBody != nil {
			return entry.ResponseStatus, entry.ResponseBody, nil
		}
	}
	return 0, nil, &models.APIError{
		Status:        fiber.StatusTooManyRequests,
		Code:          models.CodeRateLimited,
		Message:       "a request with this Idempotency-Key is still being processed, retry shortly",
		RetryAfterSec: 1,
	}
}

// PurgeExpiredIdempotencyKeys deletes aged-out entries; run periodically.
func PurgeExpiredIdempotencyKeys(db *gorm.DB) (int64, error) {
	res := db.Where("expires_at <= ?", time.Now().UTC()).Delete(&models.IdempotencyKey{})
	return res.RowsAffected, res.Error
}
