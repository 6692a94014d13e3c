package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/stampede/internal/request"
)

// PriorityQueue is a shared ordered set of framed request records.
// The score is the negated priority, so the lowest score is the most
// urgent request and ZPOPMIN always hands back the highest priority.
type PriorityQueue struct {
	client *redis.Client
	key    string
}

// NewPriorityQueue creates a priority queue over the given Redis key
func NewPriorityQueue(client *redis.Client, key string) *PriorityQueue {
	return &PriorityQueue{
		client: client,
		key:    key,
	}
}

// Key returns the Redis key backing this queue
func (q *PriorityQueue) Key() string {
	return q.key
}

// Push inserts the record with score -priority. Ties between equal
// priorities fall back to Redis's lexical member order.
func (q *PriorityQueue) Push(ctx context.Context, req *request.Request, priority int64) error {
	data, err := encodeRecord(req)
	if err != nil {
		return fmt.Errorf("failed to frame request: %w", err)
	}

	if err := q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(-priority),
		Member: data,
	}).Err(); err != nil {
		return fmt.Errorf("failed to push to %s: %w", q.key, err)
	}

	return nil
}

// Pop atomically removes and returns the highest-priority record, or
// nil when the queue is empty. ZPOPMIN guarantees concurrent workers
// never receive the same member.
func (q *PriorityQueue) Pop(ctx context.Context) (*request.Request, error) {
	members, err := q.client.ZPopMin(ctx, q.key, 1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to pop from %s: %w", q.key, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	raw, ok := members[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected member type %T in %s", members[0].Member, q.key)
	}

	req, err := decodeRecord([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("bad record in %s: %w", q.key, err)
	}
	return req, nil
}

// Len returns the number of records in the queue
func (q *PriorityQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read length of %s: %w", q.key, err)
	}
	return n, nil
}

// Clear deletes the queue key
func (q *PriorityQueue) Clear(ctx context.Context) error {
	if err := q.client.Del(ctx, q.key).Err(); err != nil {
		return fmt.Errorf("failed to clear %s: %w", q.key, err)
	}
	return nil
}
