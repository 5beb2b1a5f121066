// Package ratelimit enforces the per-user fixed-window request quota.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one quota check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// QuotaTracker counts requests per user in fixed windows. A window resets
// once more than Window has elapsed since it started. Rejected requests are
// not counted.
type QuotaTracker interface {
	CheckAndIncrement(ctx context.Context, userID string) (Decision, error)
	Usage(ctx context.Context, userID string) (int, error)
	Reset(ctx context.Context, userID string) error
}

// Config holds the quota window and cap
type Config struct {
	Window time.Duration
	Limit  int
}

// DefaultConfig allows 5 requests per 60 seconds
func DefaultConfig() Config {
	return Config{Window: 60 * time.Second, Limit: 5}
}

// QuotaState is the window a user is currently in
type QuotaState struct {
	WindowStart  time.Time
	RequestCount int
}

// expired reports whether the window must be reset at now
func (s QuotaState) expired(now time.Time, window time.Duration) bool {
	return now.Sub(s.WindowStart) > window
}
