package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdempotencyKeyExpired(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := IdempotencyKey{
		CreatedAt: created,
		ExpiresAt: created.Add(IdempotencyTTL),
	}

	assert.False(t, entry.Expired(created))
	assert.False(t, entry.Expired(created.Add(59*time.Second)))
	// age >= TTL means expired, boundary included
	assert.True(t, entry.Expired(created.Add(60*time.Second)))
	assert.True(t, entry.Expired(created.Add(time.Hour)))
}
