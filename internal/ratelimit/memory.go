package ratelimit

import (
	"context"
	"sync"
	"time"
)

// pruneEvery controls how often idle windows are dropped from memory
const pruneEvery = 1024

// MemoryQuotaTracker keeps quota state in process memory
type MemoryQuotaTracker struct {
	mu     sync.Mutex
	cfg    Config
	states map[string]QuotaState
	calls  int
	now    func() time.Time
}

// NewMemoryQuotaTracker creates a new in-memory quota tracker
func NewMemoryQuotaTracker(cfg Config) *MemoryQuotaTracker {
	return &MemoryQuotaTracker{
		cfg:    cfg,
		states: make(map[string]QuotaState),
		now:    time.Now,
	}
}

// CheckAndIncrement admits the request if the user's window has room
func (t *MemoryQuotaTracker) CheckAndIncrement(ctx context.Context, userID string) (Decision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.calls++
	if t.calls%pruneEvery == 0 {
		t.prune(now)
	}

	state, ok := t.states[userID]
	if !ok || state.expired(now, t.cfg.Window) {
		state = QuotaState{WindowStart: now}
	}

	allowed := state.RequestCount < t.cfg.Limit
	if allowed {
		state.RequestCount++
	}
	t.states[userID] = state

	return Decision{
		Allowed:   allowed,
		Limit:     t.cfg.Limit,
		Remaining: t.cfg.Limit - state.RequestCount,
		ResetAt:   state.WindowStart.Add(t.cfg.Window),
	}, nil
}

// Usage returns the count in the user's current window
func (t *MemoryQuotaTracker) Usage(ctx context.Context, userID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[userID]
	if !ok || state.expired(t.now(), t.cfg.Window) {
		return 0, nil
	}
	return state.RequestCount, nil
}

// Reset clears the user's window
func (t *MemoryQuotaTracker) Reset(ctx context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.states, userID)
	return nil
}

func (t *MemoryQuotaTracker) prune(now time.Time) {
	for id, state := range t.states {
		if state.expired(now, t.cfg.Window) {
			delete(t.states, id)
		}
	}
}
