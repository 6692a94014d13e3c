package scheduler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	stperrors "github.com/muaviaUsmani/stampede/internal/errors"
	"github.com/muaviaUsmani/stampede/internal/logger"
	"github.com/muaviaUsmani/stampede/internal/metrics"
)

// Janitor runs fleet-singleton maintenance on a cron schedule: it
// measures every discovered queue's depth and publishes the figures
// to metrics and the log. A Redis lock ensures only one worker in the
// fleet does the sweep per firing.
type Janitor struct {
	client    *redis.Client
	scheduler *DistributedScheduler
	lockKey   string
	lockTTL   time.Duration
	cron      *cron.Cron
	log       logger.Logger
	stats     *metrics.Collector
}

// NewJanitor creates a janitor for the scheduler's queue set
func NewJanitor(client *redis.Client, s *DistributedScheduler, spiderName string, log logger.Logger) *Janitor {
	return &Janitor{
		client:    client,
		scheduler: s,
		lockKey:   spiderName + ":janitor:lock",
		lockTTL:   25 * time.Second,
		cron:      cron.New(),
		log:       log,
		stats:     metrics.Default(),
	}
}

// Start schedules the sweep. The schedule accepts cron expressions
// and @every descriptors.
func (j *Janitor) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, func() {
		if err := stperrors.Guard(j.sweep); err != nil {
			j.log.Error("Janitor sweep panicked", "error", err)
		}
	}); err != nil {
		return err
	}

	j.cron.Start()
	j.log.Info("Janitor started", "schedule", schedule)
	return nil
}

// Stop halts the schedule, waiting for a running sweep to finish
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), j.lockTTL)
	defer cancel()

	lock, err := AcquireFleetLock(ctx, j.client, j.lockKey, j.lockTTL)
	if err != nil {
		j.log.Error("Janitor lock acquisition failed", "error", err)
		return
	}
	if lock == nil {
		// another worker is sweeping this round
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			j.log.Error("Janitor lock release failed", "error", err)
		}
	}()

	var total int64
	keys := j.scheduler.QueueKeys()
	for _, key := range keys {
		depth, err := j.client.ZCard(ctx, key).Result()
		if err != nil {
			j.log.Error("Failed to measure queue depth", "queue", key, "error", err)
			continue
		}
		j.stats.RecordQueueDepth(key, depth)
		total += depth
	}

	j.log.Info("Queue sweep complete", "queues", len(keys), "backlog", total)
}
