package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/stampede/internal/logger"
	"github.com/muaviaUsmani/stampede/internal/metrics"
)

func TestFleetLock_Exclusive(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	lock, err := AcquireFleetLock(ctx, client, "s:janitor:lock", 30*time.Second)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if lock == nil {
		t.Fatal("expected to acquire the lock")
	}

	second, err := AcquireFleetLock(ctx, client, "s:janitor:lock", 30*time.Second)
	if err != nil {
		t.Fatalf("second acquire errored: %v", err)
	}
	if second != nil {
		t.Error("expected second acquisition to be refused")
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	third, err := AcquireFleetLock(ctx, client, "s:janitor:lock", 30*time.Second)
	if err != nil {
		t.Fatalf("third acquire errored: %v", err)
	}
	if third == nil {
		t.Error("expected lock to be available after release")
	}
}

func TestJanitor_SweepRecordsDepths(t *testing.T) {
	s, client, _ := setupScheduler(t, testConfig("s"))
	ctx := context.Background()

	seed(t, s, "http://example.com/a", 1)
	seed(t, s, "http://example.com/b", 2)
	seed(t, s, "http://other.org/c", 1)
	s.createQueues(ctx)

	stats := metrics.NewCollector(nil)
	j := NewJanitor(client, s, "s", logger.Default())
	j.stats = stats

	j.sweep()

	snap := stats.GetSnapshot()
	if snap.QueueDepths["s:example.com:queue"] != 2 {
		t.Errorf("expected depth 2, got %d", snap.QueueDepths["s:example.com:queue"])
	}
	if snap.QueueDepths["s:other.org:queue"] != 1 {
		t.Errorf("expected depth 1, got %d", snap.QueueDepths["s:other.org:queue"])
	}

	// the sweep lock must be released afterwards
	n, _ := client.Exists(ctx, "s:janitor:lock").Result()
	if n != 0 {
		t.Error("expected janitor lock released after sweep")
	}
}
