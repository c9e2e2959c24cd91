// Package ratelimit implements a shared cooldown gate for the catalog backend.
// When the backend answers 429 or 503 with a Retry-After header, the gate is
// closed in Redis until the deadline so every replica fails fast instead of
// piling more requests onto a backend that asked to be left alone.
package ratelimit

import (
	"time"
)

// Redis keys for cooldown state storage.
const (
	RedisKeyCooldownUntil  = "sitemap:backend:cooldown_until"
	RedisKeyCooldownReason = "sitemap:backend:cooldown_reason"
)

// Bounds applied to Retry-After values.
const (
	// MinCooldown is applied when the backend sends Retry-After: 0 or a past date.
	MinCooldown = 1 * time.Second

	// MaxCooldown caps absurd Retry-After values so a misconfigured backend
	// cannot disable sitemap aggregation for hours.
	MaxCooldown = 10 * time.Minute
)

// CooldownState represents the current backend cooldown.
// The zero value is an open gate.
type CooldownState struct {
	// Until is when the backend may be called again.
	Until time.Time `json:"until"`

	// Reason is the status that closed the gate (e.g. "429 Too Many Requests").
	Reason string `json:"reason"`
}

// Active returns true while the gate is closed.
func (s *CooldownState) Active() bool {
	return time.Now().Before(s.Until)
}

// Remaining returns the time until the gate opens again.
// Returns 0 if the cooldown has already passed.
func (s *CooldownState) Remaining() time.Duration {
	d := time.Until(s.Until)
	if d < 0 {
		return 0
	}
	return d
}
