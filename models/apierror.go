package models

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Machine-readable error codes shared by every endpoint.
const (
	CodeWalletDuplicate     = "WALLET_DUPLICATE"
	CodeInvalidAddress      = "INVALID_ADDRESS"
	CodeENSResolutionFailed = "ENS_RESOLUTION_FAILED"
	CodePrivateKeyDetected  = "PRIVATE_KEY_DETECTED"
	CodeSeedPhraseDetected  = "SEED_PHRASE_DETECTED"
	CodeQuotaExceeded       = "QUOTA_EXCEEDED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeRateLimited         = "RATE_LIMITED"
	CodeNotFound            = "NOT_FOUND"
	CodeInternalError       = "INTERNAL_ERROR"
)

// APIError carries an HTTP status plus the wire error body
// { "error": { "code": ..., "message": ..., "retry_after_sec": ... } }.
type APIError struct {
	Status        int    `json:"-"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int    `json:"retry_after_sec,omitempty"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

func ErrWalletDuplicate() *APIError {
	return NewAPIError(fiber.StatusConflict, CodeWalletDuplicate, "this address is already watched on that network")
}

func ErrInvalidAddress(message string) *APIError {
	return NewAPIError(fiber.StatusUnprocessableEntity, CodeInvalidAddress, message)
}

func ErrPrivateKeyDetected() *APIError {
	return NewAPIError(fiber.StatusUnprocessableEntity, CodePrivateKeyDetected, "that looks like a private key - never paste private keys, only public addresses")
}

func ErrSeedPhraseDetected() *APIError {
	return NewAPIError(fiber.StatusUnprocessableEntity, CodeSeedPhraseDetected, "that looks like a seed phrase - never paste seed phrases, only public addresses")
}

func ErrENSResolutionFailed(name string) *APIError {
	return NewAPIError(fiber.StatusUnprocessableEntity, CodeENSResolutionFailed, "could not resolve "+name)
}

func ErrQuotaExceeded(plan string, limit int) *APIError {
	return NewAPIError(fiber.StatusForbidden, CodeQuotaExceeded,
		fmt.Sprintf("the %s plan allows at most %d distinct addresses", plan, limit))
}

func ErrNotFound(what string) *APIError {
	return NewAPIError(fiber.StatusNotFound, CodeNotFound, what+" not found")
}

func ErrUnauthorized(message string) *APIError {
	return NewAPIError(fiber.StatusUnauthorized, CodeUnauthorized, message)
}
