package utils

import "strings"

// IsValidNextParam accepts only same-origin relative paths: a leading "/" but
// not "//" (protocol-relative URLs would open-redirect) and more than the
// slash itself. Absolute URLs, javascript:, data:, and empty strings all fail.
func IsValidNextParam(next string) bool {
	if len(next) < 2 {
		return false
	}
	if !strings.HasPrefix(next, "/") {
		return false
	}
	if strings.HasPrefix(next, "//") {
		return false
	}
	return true
}

// GetSafeRedirect returns next when it passes IsValidNextParam, else def.
func GetSafeRedirect(next, def string) string {
	if IsValidNextParam(next) {
		return next
	}
	return def
}
