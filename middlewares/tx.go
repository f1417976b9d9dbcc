package middlewares

import (
	"log"

	"whalewatch-backend/database"

	"github.com/gofiber/fiber/v2"
)

// RequestTx opens a per-request DB transaction for mutating methods.
// Order: run AFTER IsAuthenticatedHeader() (so userID is present) and AFTER
// Idempotency() (so idempotency records aren't tied to the handler TX).
// Every read-then-write on is_primary happens inside this transaction, which
// is what keeps the one-primary-per-user invariant linearizable.
func RequestTx() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
		default:
			return c.Next()
		}

		tx := database.DB.Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to begin transaction")
		}

		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				panic(r) // re-panic after rollback so Fiber's handler can catch
			}
			if err != nil {
				// Rejected mutations leave the store unchanged
				_ = tx.Rollback()
				return
			}
			if e := tx.Commit().Error; e != nil {
				log.Printf("tx commit failed: %v", e)
				err = fiber.NewError(fiber.StatusInternalServerError, "transaction commit failed")
				return
			}
			// Side effects that must see the committed row (e.g. the
			// enrichment kick) run only once the commit has landed.
			if fn, ok := c.Locals("afterCommit").(func()); ok && fn != nil {
				fn()
			}
		}()

		// Make the TX available to handlers via database.GetRequestDB(c).
		c.Locals("tx", tx)

		err = c.Next()
		return err
	}
}
