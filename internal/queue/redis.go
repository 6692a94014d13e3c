// Package queue implements the Redis-backed queue fabric: per-domain
// priority queues, the distributed moderated throttle that gates pops,
// the TTL-bounded dupefilter, and the crawl blacklist.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis with pool settings tuned for a
// crawl worker: many short zset operations plus the throttle script,
// issued from the fetch loop and the janitor concurrently.
func NewRedisClient(host string, port int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),

		PoolSize:        20,
		MinIdleConns:    2,
		ConnMaxIdleTime: 10 * time.Minute,
		PoolTimeout:     5 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,

		ContextTimeoutEnabled: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s:%d: %w", host, port, err)
	}

	return client, nil
}
