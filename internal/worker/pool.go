// Package worker runs the fetch pool: a bounded set of goroutines
// polling the scheduler for requests and handing them to the fetcher.
// The fetcher itself (HTTP client, parsing, callbacks) lives outside
// this module.
package worker

import (
	"context"
	"sync"
	"time"

	stperrors "github.com/muaviaUsmani/stampede/internal/errors"
	"github.com/muaviaUsmani/stampede/internal/logger"
	"github.com/muaviaUsmani/stampede/internal/request"
)

// Fetcher executes a hydrated crawl request
type Fetcher interface {
	Fetch(ctx context.Context, req *request.Request) error
}

// RequestSource hands out the next request to fetch; satisfied by
// scheduler.DistributedScheduler
type RequestSource interface {
	NextRequest(ctx context.Context) (*request.Request, error)
}

// Pool polls a RequestSource with bounded concurrency
type Pool struct {
	source       RequestSource
	fetcher      Fetcher
	concurrency  int
	idleInterval time.Duration
	log          logger.Logger
	wg           sync.WaitGroup
}

// NewPool creates a fetch pool. idleInterval is how long a worker
// sleeps after the scheduler comes back empty, on top of the
// scheduler's own retry jitter.
func NewPool(source RequestSource, fetcher Fetcher, concurrency int, idleInterval time.Duration, log logger.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		source:       source,
		fetcher:      fetcher,
		concurrency:  concurrency,
		idleInterval: idleInterval,
		log:          log,
	}
}

// Start launches the workers. They run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info("Fetch pool starting", "concurrency", p.concurrency)

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Wait blocks until every worker has drained
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.log.WithFields(map[string]interface{}{"worker": id})

	for {
		select {
		case <-ctx.Done():
			log.Debug("Worker stopping")
			return
		default:
		}

		req, err := p.source.NextRequest(ctx)
		if err != nil {
			log.Error("Failed to get next request", "error", err)
			continue
		}
		if req == nil {
			select {
			case <-ctx.Done():
			case <-time.After(p.idleInterval):
			}
			continue
		}

		p.dispatch(ctx, log, req)
	}
}

func (p *Pool) dispatch(ctx context.Context, log logger.Logger, req *request.Request) {
	err := stperrors.Guard(func() {
		if err := p.fetcher.Fetch(ctx, req); err != nil {
			log.Error("Fetch failed", "url", req.URL, "error", err)
		}
	})
	if err != nil {
		log.Error("Fetcher panicked", "url", req.URL, "error", err)
	}
}
