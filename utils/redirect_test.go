package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidNextParam(t *testing.T) {
	valid := []string{
		"/app",
		"/app/wallets?tab=1",
		"/a",
		"/deep/nested/path",
	}
	for _, s := range valid {
		assert.True(t, IsValidNextParam(s), s)
	}

	invalid := []string{
		"",
		"/",          // slash alone carries no destination
		"//evil.com", // protocol-relative open redirect
		"//",
		"https://evil.com",
		"http://evil.com/app",
		"javascript:alert(1)",
		"data:text/html,x",
		"app/wallets", // relative without leading slash
		" /app",       // leading whitespace is not a path
	}
	for _, s := range invalid {
		assert.False(t, IsValidNextParam(s), "%q", s)
	}
}

func TestGetSafeRedirect(t *testing.T) {
	assert.Equal(t, "/app/wallets", GetSafeRedirect("/app/wallets", "/app"))
	assert.Equal(t, "/app", GetSafeRedirect("//evil.com", "/app"))
	assert.Equal(t, "/app", GetSafeRedirect("", "/app"))
	assert.Equal(t, "/app", GetSafeRedirect("https://evil.com", "/app"))
}
