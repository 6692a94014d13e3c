package scheduler

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/stampede/internal/logger"
	"github.com/muaviaUsmani/stampede/internal/metrics"
)

// Two workers sharing one Redis must stay within a single hit budget
// for the same domain.
func TestTwoSchedulers_ShareThrottleBudget(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig("s")
	cfg.QueueHits = 3
	cfg.QueueWindow = 60

	newWorker := func() *DistributedScheduler {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		s := New(client, cfg, stubIPSource{ip: "10.0.0.9"}, logger.Default())
		s.SetStats(metrics.NewCollector(nil))
		return s
	}

	s1 := newWorker()
	s2 := newWorker()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		seed(t, s1, fmt.Sprintf("http://example.com/%d", i), int64(i))
	}
	s1.createQueues(ctx)
	s2.createQueues(ctx)

	var popped int
	for i := 0; i < 5; i++ {
		if item := s1.FindItem(ctx); item != nil {
			popped++
		}
		if item := s2.FindItem(ctx); item != nil {
			popped++
		}
	}

	if popped != 3 {
		t.Errorf("expected 3 total pops across both workers, got %d", popped)
	}
}

// A queue seeded by one worker shows up in another worker's dequeue
// rotation after its next refresh.
func TestTwoSchedulers_AdoptEachOthersQueues(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig("s")

	newWorker := func() *DistributedScheduler {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		s := New(client, cfg, stubIPSource{ip: "10.0.0.9"}, logger.Default())
		s.SetStats(metrics.NewCollector(nil))
		return s
	}

	s1 := newWorker()
	s2 := newWorker()
	ctx := context.Background()

	// s1 enqueues into a domain s2 has never seen
	seed(t, s1, "http://fresh.example.org/start", 4)

	// s2 discovers it on refresh and can pop it
	req, err := s2.NextRequest(ctx)
	if err != nil {
		t.Fatalf("next request failed: %v", err)
	}
	if req == nil {
		t.Fatal("expected s2 to adopt and pop s1's queue")
	}
	if req.URL != "http://fresh.example.org/start" {
		t.Errorf("unexpected url %q", req.URL)
	}
}
