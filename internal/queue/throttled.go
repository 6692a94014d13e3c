package queue

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/stampede/internal/request"
)

// popScript gates a pop behind the rolling-window throttle and performs
// the pop itself, all server-side so N workers sharing the throttle key
// stay within the limit. Steps: trim stale stamps, bail on an empty
// queue before spending a window slot, enforce the hit limit, enforce
// even spacing when moderated, stamp the window, pop.
//
// KEYS[1] = throttle zset, KEYS[2] = queue zset
// ARGV = now, window, limit, moderated, ttl, stamp
var popScript = redis.NewScript(`
local throttle = KEYS[1]
local queue = KEYS[2]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local moderated = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])
local stamp = ARGV[6]

redis.call('ZREMRANGEBYSCORE', throttle, '-inf', now - window)

if redis.call('ZCARD', queue) == 0 then
	return false
end

if limit <= 0 then
	return false
end

if redis.call('ZCARD', throttle) >= limit then
	return false
end

if moderated == 1 then
	local last = redis.call('ZRANGE', throttle, -1, -1, 'WITHSCORES')
	if #last >= 2 and (now - tonumber(last[2])) < (window / limit) then
		return false
	end
end

redis.call('ZADD', throttle, now, stamp)
redis.call('EXPIRE', throttle, ttl)

local popped = redis.call('ZPOPMIN', queue, 1)
if #popped == 0 then
	return false
end
return popped[1]
`)

// ThrottledQueue wraps a PriorityQueue with a distributed moderated
// rate limiter. The window counter is an auxiliary zset of request
// timestamps under the throttle key, shared by every worker that
// composes the same key.
type ThrottledQueue struct {
	client *redis.Client
	inner  *PriorityQueue

	mu        sync.RWMutex
	window    float64 // seconds
	limit     int64   // hits per window
	moderated bool

	throttleKey string

	// stamp members must be unique across the fleet; two workers
	// popping in the same microsecond may not collapse into one entry
	instance string
	seq      atomic.Uint64
}

// NewThrottledQueue wraps inner with a throttle on throttleKey
func NewThrottledQueue(client *redis.Client, inner *PriorityQueue, window float64, limit int64, moderated bool, throttleKey string) *ThrottledQueue {
	return &ThrottledQueue{
		client:      client,
		inner:       inner,
		window:      window,
		limit:       limit,
		moderated:   moderated,
		throttleKey: throttleKey,
		instance:    uuid.NewString(),
	}
}

// Key returns the Redis key of the wrapped priority queue
func (t *ThrottledQueue) Key() string {
	return t.inner.Key()
}

// ThrottleKey returns the key the rolling window counter lives under
func (t *ThrottledQueue) ThrottleKey() string {
	return t.throttleKey
}

// Limits returns the current window and hit limit
func (t *ThrottledQueue) Limits() (window float64, limit int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.window, t.limit
}

// SetLimits replaces the window and hit limit. Called by the config
// watcher goroutine while the fetch loop keeps popping.
func (t *ThrottledQueue) SetLimits(window float64, limit int64) {
	t.mu.Lock()
	t.window = window
	t.limit = limit
	t.mu.Unlock()
}

// Push delegates to the inner priority queue
func (t *ThrottledQueue) Push(ctx context.Context, req *request.Request, priority int64) error {
	return t.inner.Push(ctx, req, priority)
}

// Pop returns the next record if the throttle allows one, or nil on
// denial or empty queue. Redis errors are reported but callers should
// treat them as a denial.
func (t *ThrottledQueue) Pop(ctx context.Context) (*request.Request, error) {
	window, limit := t.Limits()

	now := float64(time.Now().UnixMicro()) / 1e6
	moderated := 0
	if t.moderated {
		moderated = 1
	}
	ttl := int64(math.Ceil(window))
	if ttl < 1 {
		ttl = 1
	}
	stamp := fmt.Sprintf("%.6f:%s:%d", now, t.instance, t.seq.Add(1))

	res, err := popScript.Run(ctx, t.client,
		[]string{t.throttleKey, t.inner.Key()},
		now, window, limit, moderated, ttl, stamp,
	).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("throttle script failed for %s: %w", t.throttleKey, err)
	}

	raw, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected script result %T for %s", res, t.throttleKey)
	}

	req, err := decodeRecord([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("bad record in %s: %w", t.inner.Key(), err)
	}
	return req, nil
}

// Len returns the number of queued records, ignoring the throttle
func (t *ThrottledQueue) Len(ctx context.Context) (int64, error) {
	return t.inner.Len(ctx)
}

// Clear deletes both the queue and its window counter
func (t *ThrottledQueue) Clear(ctx context.Context) error {
	if err := t.inner.Clear(ctx); err != nil {
		return err
	}
	if err := t.client.Del(ctx, t.throttleKey).Err(); err != nil {
		return fmt.Errorf("failed to clear throttle %s: %w", t.throttleKey, err)
	}
	return nil
}
