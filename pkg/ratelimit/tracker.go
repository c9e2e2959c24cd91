package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for cooldown tracking.
var (
	cooldownActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_backend_cooldown_activations_total",
		Help: "Total number of times the backend asked us to back off, by status",
	}, []string{"status"})

	cooldownBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitemap_backend_cooldown_blocks_total",
		Help: "Total number of backend requests skipped because the cooldown gate was closed",
	})

	backendRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sitemap_backend_rate_limit_remaining",
		Help: "Last X-RateLimit-Remaining value reported by the catalog backend",
	})
)

// Tracker watches backend responses and gates requests during a cooldown.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new cooldown tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the current cooldown state from Redis.
// Returns an open gate if no cooldown is stored.
func (t *Tracker) GetState(ctx context.Context) (*CooldownState, error) {
	untilUnix, err := t.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	if err == redis.Nil {
		return &CooldownState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cooldown deadline: %w", err)
	}

	reason, err := t.redis.Get(ctx, RedisKeyCooldownReason).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get cooldown reason: %w", err)
	}

	return &CooldownState{
		Until:  time.UnixMilli(untilUnix),
		Reason: reason,
	}, nil
}

// UpdateFromResponse inspects a backend response and closes the gate when the
// backend asked for a pause (429 or 503 with Retry-After).
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	if remain := headers.Get("X-RateLimit-Remaining"); remain != "" {
		if n, err := strconv.Atoi(remain); err == nil {
			backendRateLimitRemaining.Set(float64(n))
		}
	}

	if statusCode != http.StatusTooManyRequests && statusCode != http.StatusServiceUnavailable {
		return nil
	}

	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		// No explicit pause requested; the failed call alone is enough.
		return nil
	}

	now := time.Now()
	wait, ok := ParseRetryAfter(retryAfter, now)
	if !ok {
		return fmt.Errorf("parse Retry-After header %q", retryAfter)
	}

	state := &CooldownState{
		Until:  now.Add(wait),
		Reason: fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
	}

	// Keys expire with the cooldown so an abandoned state cannot stick.
	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyCooldownUntil, state.Until.UnixMilli(), wait)
	pipe.Set(ctx, RedisKeyCooldownReason, state.Reason, wait)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store cooldown state in redis: %w", err)
	}

	cooldownActivationsTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()

	t.logger.Warn().
		Int("status", statusCode).
		Dur("cooldown", wait).
		Time("until", state.Until).
		Msg("Backend requested cooldown")

	return nil
}

// ShouldAllowRequest returns false while the cooldown gate is closed.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get cooldown state: %w", err)
	}

	if state.Active() {
		t.logger.Debug().
			Str("reason", state.Reason).
			Dur("remaining", state.Remaining()).
			Msg("Backend cooling down - skipping request")

		cooldownBlocksTotal.Inc()
		return false, nil
	}

	return true, nil
}

// ParseRetryAfter parses a Retry-After value given either as delay seconds or
// as an HTTP date, clamped to [MinCooldown, MaxCooldown].
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	var wait time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		switch {
		case secs < 0:
			return 0, false
		case secs > int(MaxCooldown/time.Second):
			wait = MaxCooldown
		default:
			wait = time.Duration(secs) * time.Second
		}
	} else {
		at, err := http.ParseTime(value)
		if err != nil {
			return 0, false
		}
		wait = at.Sub(now)
	}

	if wait < MinCooldown {
		wait = MinCooldown
	}
	if wait > MaxCooldown {
		wait = MaxCooldown
	}
	return wait, true
}
