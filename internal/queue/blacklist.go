package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Blacklist is the shared set of stopped or expired crawls. Members
// are "{appid}||{crawlid}" pairs; requests matching a member are
// rejected at enqueue time on every worker.
type Blacklist struct {
	client *redis.Client
	key    string
}

// NewBlacklist creates a blacklist on the given set key
func NewBlacklist(client *redis.Client, key string) *Blacklist {
	return &Blacklist{client: client, key: key}
}

func blacklistMember(appid, crawlid string) string {
	return fmt.Sprintf("%s||%s", appid, crawlid)
}

// Contains reports whether the (appid, crawlid) pair is blacklisted
func (b *Blacklist) Contains(ctx context.Context, appid, crawlid string) (bool, error) {
	found, err := b.client.SIsMember(ctx, b.key, blacklistMember(appid, crawlid)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist %s: %w", b.key, err)
	}
	return found, nil
}

// Add blacklists the (appid, crawlid) pair. Used by operators to stop
// a crawl across the fleet.
func (b *Blacklist) Add(ctx context.Context, appid, crawlid string) error {
	if err := b.client.SAdd(ctx, b.key, blacklistMember(appid, crawlid)).Err(); err != nil {
		return fmt.Errorf("failed to add to blacklist %s: %w", b.key, err)
	}
	return nil
}
