package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/stampede/internal/request"
)

// DupeFilter is a TTL-bounded set of request fingerprints shared by
// every worker on a crawl. It is a best-effort filter over the TTL,
// not an exactly-once guarantee.
type DupeFilter struct {
	client         *redis.Client
	key            string
	timeout        time.Duration
	includeHeaders []string
}

// NewDupeFilter creates a dupefilter on the given set key. The key's
// TTL is refreshed to timeout on every insert. includeHeaders names
// the headers folded into fingerprints; nil fingerprints on method,
// URL, and body alone.
func NewDupeFilter(client *redis.Client, key string, timeout time.Duration, includeHeaders []string) *DupeFilter {
	return &DupeFilter{
		client:         client,
		key:            key,
		timeout:        timeout,
		includeHeaders: includeHeaders,
	}
}

// RequestSeen reports whether the request's fingerprint is already in
// the set, adding it when not
func (d *DupeFilter) RequestSeen(ctx context.Context, req *request.Request) (bool, error) {
	fp := req.Fingerprint(d.includeHeaders)

	added, err := d.client.SAdd(ctx, d.key, fp).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check fingerprint in %s: %w", d.key, err)
	}

	if err := d.client.Expire(ctx, d.key, d.timeout).Err(); err != nil {
		return false, fmt.Errorf("failed to refresh TTL on %s: %w", d.key, err)
	}

	return added == 0, nil
}

// Clear removes the fingerprint set
func (d *DupeFilter) Clear(ctx context.Context) error {
	if err := d.client.Del(ctx, d.key).Err(); err != nil {
		return fmt.Errorf("failed to clear %s: %w", d.key, err)
	}
	return nil
}
