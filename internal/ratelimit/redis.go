package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// quotaScript loads the window, resets it when expired, and increments only
// when the request is admitted. Returns {allowed, count, window_start_ms}.
var quotaScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local fields = redis.call('HMGET', key, 'start', 'count')
	local start = tonumber(fields[1])
	local count = tonumber(fields[2])

	if not start or not count or now - start > window then
		start = now
		count = 0
		redis.call('HSET', key, 'start', start, 'count', count)
	end

	local allowed = 0
	if count < limit then
		count = count + 1
		redis.call('HSET', key, 'count', count)
		allowed = 1
	end

	redis.call('PEXPIRE', key, ttl)
	return {allowed, count, start}
`)

// RedisQuotaTracker keeps quota state in Redis so several gateway processes
// share one window per user
type RedisQuotaTracker struct {
	client *redis.Client
	cfg    Config
	now    func() time.Time
}

// NewRedisQuotaTracker creates a new Redis-backed quota tracker
func NewRedisQuotaTracker(client *redis.Client, cfg Config) *RedisQuotaTracker {
	return &RedisQuotaTracker{
		client: client,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (t *RedisQuotaTracker) key(userID string) string {
	return fmt.Sprintf("quota:%s", userID)
}

// CheckAndIncrement admits the request if the user's window has room
func (t *RedisQuotaTracker) CheckAndIncrement(ctx context.Context, userID string) (Decision, error) {
	nowMs := t.now().UnixMilli()
	windowMs := t.cfg.Window.Milliseconds()

	res, err := quotaScript.Run(ctx, t.client, []string{t.key(userID)},
		nowMs, windowMs, t.cfg.Limit, 2*windowMs).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check quota: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("unexpected quota script result: %v", res)
	}

	count := int(res[1])
	return Decision{
		Allowed:   res[0] == 1,
		Limit:     t.cfg.Limit,
		Remaining: t.cfg.Limit - count,
		ResetAt:   time.UnixMilli(res[2]).Add(t.cfg.Window),
	}, nil
}

// Usage returns the count in the user's current window
func (t *RedisQuotaTracker) Usage(ctx context.Context, userID string) (int, error) {
	vals, err := t.client.HMGet(ctx, t.key(userID), "start", "count").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get quota usage: %w", err)
	}
	if vals[0] == nil || vals[1] == nil {
		return 0, nil
	}

	start, err := strconv.ParseFloat(fmt.Sprint(vals[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed quota window: %w", err)
	}
	count, err := strconv.ParseFloat(fmt.Sprint(vals[1]), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed quota count: %w", err)
	}

	state := QuotaState{WindowStart: time.UnixMilli(int64(start)), RequestCount: int(count)}
	if state.expired(t.now(), t.cfg.Window) {
		return 0, nil
	}
	return state.RequestCount, nil
}

// Reset clears the user's window
func (t *RedisQuotaTracker) Reset(ctx context.Context, userID string) error {
	if err := t.client.Del(ctx, t.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to reset quota: %w", err)
	}
	return nil
}
