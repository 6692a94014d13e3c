// Package main runs a stampede crawl worker: the distributed scheduler,
// its ZooKeeper config watcher, the fleet janitor, and the fetch pool.
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // debugging endpoint, shares the metrics port
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/muaviaUsmani/stampede/internal/config"
	"github.com/muaviaUsmani/stampede/internal/logger"
	"github.com/muaviaUsmani/stampede/internal/queue"
	"github.com/muaviaUsmani/stampede/internal/request"
	"github.com/muaviaUsmani/stampede/internal/scheduler"
	"github.com/muaviaUsmani/stampede/internal/worker"
	"github.com/muaviaUsmani/stampede/internal/zookeeper"
)

// logFetcher is the integration point for the HTTP fetcher, which
// lives outside this module. It logs what would be fetched.
type logFetcher struct {
	log logger.Logger
}

func (f *logFetcher) Fetch(_ context.Context, req *request.Request) error {
	f.log.Info("Dispatching request", "url", req.URL, "appid", req.AppID(), "crawlid", req.CrawlID())
	return nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()
	logger.SetDefault(log)

	workerLog := log.WithComponent(logger.ComponentWorker)
	workerLog.Info("Worker starting", "spider", cfg.SpiderName,
		"redis", fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort))

	redisClient, err := queue.NewRedisClient(cfg.RedisHost, cfg.RedisPort)
	if err != nil {
		workerLog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	ipSource := scheduler.NewHTTPIPSource(cfg.PublicIPURL, 5*time.Second)
	sched := scheduler.New(redisClient, cfg, ipSource,
		log.WithComponent(logger.ComponentScheduler))

	// the coordination service being down at startup is fatal: the
	// operator should run without it or fix it before relaunch
	watcher, err := zookeeper.NewWatcher(
		cfg.ZookeeperHosts, cfg.ZookeeperPath(), 15*time.Second,
		sched.OnConfig, sched.OnConfigError,
		log.WithComponent(logger.ComponentZookeeper))
	if err != nil {
		workerLog.Error("Could not connect to Zookeeper", "error", err)
		os.Exit(1)
	}
	sched.SetWatcher(watcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Open(ctx); err != nil {
		workerLog.Error("Failed to open scheduler", "error", err)
		os.Exit(1)
	}

	if cfg.MetricsPort > 0 {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.Handle("/debug/pprof/", http.DefaultServeMux)
			addr := fmt.Sprintf(":%d", cfg.MetricsPort)
			workerLog.Info("Metrics server listening", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				workerLog.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	var janitor *scheduler.Janitor
	if cfg.JanitorSchedule != "" {
		janitor = scheduler.NewJanitor(redisClient, sched, cfg.SpiderName,
			log.WithComponent(logger.ComponentJanitor))
		if err := janitor.Start(cfg.JanitorSchedule); err != nil {
			workerLog.Error("Failed to start janitor", "error", err)
			os.Exit(1)
		}
	}

	pool := worker.NewPool(sched, &logFetcher{log: workerLog}, 4, time.Second,
		log.WithComponent(logger.ComponentWorker))
	pool.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	workerLog.Info("Shutting down", "signal", sig.String())

	cancel()
	pool.Wait()
	if janitor != nil {
		janitor.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	sched.Close(shutdownCtx, "shutdown")

	workerLog.Info("Worker stopped")
}
