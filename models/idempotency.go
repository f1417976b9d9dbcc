package models

import "time"

// IdempotencyTTL is how long a stored response may be replayed. Past the TTL
// the entry is evicted and the mutation runs again; the wallet table's unique
// indexes remain the duplicate guard of last resort.
const IdempotencyTTL = 60 * time.Second

// IdempotencyKey stores the first completed response for a given request
// fingerprint so client retries within the TTL execute the side effect once.
type IdempotencyKey struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Key            string     `json:"key" gorm:"size:128;uniqueIndex"` // header value
	RequestHash    string     `json:"request_hash" gorm:"size:64"`     // sha256 of method|path|body|user
	Method         string     `json:"method" gorm:"size:10"`
	Path           string     `json:"path" gorm:"size:255"`
	UserID         string     `json:"user_id" gorm:"size:128"`
	ResponseStatus int        `json:"response_status"`     // 0 => not completed yet
	ResponseBody   []byte     `json:"-" gorm:"type:bytea"` // raw response body (JSON)
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at" gorm:"index"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// Expired reports whether the entry has aged out at the given instant.
func (k *IdempotencyKey) Expired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}
