package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FleetLock is a Redis-based lock ensuring only one worker in the
// fleet runs a maintenance task at a time
type FleetLock struct {
	client *redis.Client
	key    string
	token  string
}

// AcquireFleetLock attempts to take the lock. Returns nil (no error)
// when another worker already holds it.
func AcquireFleetLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*FleetLock, error) {
	token := uuid.New().String()

	acquired, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !acquired {
		return nil, nil
	}

	return &FleetLock{client: client, key: key, token: token}, nil
}

// Release frees the lock if this worker still owns it. The
// check-and-delete runs as one Lua script so an expired lock grabbed
// by another worker is never deleted.
func (l *FleetLock) Release(ctx context.Context) error {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`

	_, err := l.client.Eval(ctx, script, []string{l.key}, l.token).Result()
	return err
}
