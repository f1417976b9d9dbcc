package middlewares

import (
	"log"
	"strings"

	"whalewatch-backend/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// errorBody is the single wire shape for every failed request.
type errorBody struct {
	Error *models.APIError `json:"error"`
}

// codeForStatus maps plain fiber errors onto the fixed code enum.
func codeForStatus(status int) string {
	switch status {
	case fiber.StatusUnauthorized:
		return models.CodeUnauthorized
	case fiber.StatusForbidden:
		return models.CodeForbidden
	case fiber.StatusNotFound:
		return models.CodeNotFound
	case fiber.StatusConflict:
		return models.CodeWalletDuplicate
	case fiber.StatusTooManyRequests:
		return models.CodeRateLimited
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return models.CodeInvalidAddress
	default:
		return models.CodeInternalError
	}
}

// ErrorHandler centralizes error responses. Handlers return errors; everything
// leaves the service as { "error": { code, message, retry_after_sec? } } and
// never as a raw stack trace or driver message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Typed API errors carry their own status + code
	if ae, ok := err.(*models.APIError); ok {
		return c.Status(ae.Status).JSON(errorBody{Error: ae})
	}

	// 2) Fiber errors (status-only, e.g. from the limiter or 404s)
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(errorBody{Error: &models.APIError{
			Code:    codeForStatus(fe.Code),
			Message: fe.Message,
		}})
	}

	// 3) Validation errors (422 + per-field info in the message)
	if ve, ok := err.(validator.ValidationErrors); ok {
		fields := make([]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errorBody{Error: &models.APIError{
			Code:    models.CodeInvalidAddress,
			Message: "validation failed: " + strings.Join(fields, ", "),
		}})
	}

	// 4) Unknown errors (500, sanitized)
	log.Printf("internal error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody{Error: &models.APIError{
		Code:    models.CodeInternalError,
		Message: "internal server error",
	}})
}
