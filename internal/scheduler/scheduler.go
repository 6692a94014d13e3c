// Package scheduler owns the per-domain queue fabric for one crawl
// worker: it discovers queues in Redis, throttles pops through the
// shared window counters, routes incoming requests by registered
// domain, and merges operator overrides arriving from ZooKeeper.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/stampede/internal/config"
	"github.com/muaviaUsmani/stampede/internal/domains"
	"github.com/muaviaUsmani/stampede/internal/logger"
	"github.com/muaviaUsmani/stampede/internal/metrics"
	"github.com/muaviaUsmani/stampede/internal/queue"
	"github.com/muaviaUsmani/stampede/internal/request"
)

// Watcher is the config-source handle the scheduler starts and stops.
// Satisfied by zookeeper.Watcher.
type Watcher interface {
	Start()
	Close()
}

// DistributedScheduler pulls the next URL to fetch from whichever
// domain queue is non-empty and under its rate limit. Many workers run
// one each; all coordination happens through Redis.
type DistributedScheduler struct {
	client     *redis.Client
	spiderName string
	persist    bool

	updateInterval    time.Duration
	ipRefreshInterval time.Duration
	itemRetries       int

	defaultWindow float64
	defaultHits   int64
	moderated     bool
	addType       bool
	addIP         bool

	ipSource PublicIPSource
	watcher  Watcher
	log      logger.Logger
	stats    *metrics.Collector

	dupefilter *queue.DupeFilter
	blacklist  *queue.Blacklist

	// mu guards queueDict, queueKeys, domainConfig and configDirty:
	// the watcher goroutine mutates overrides and existing queue
	// limits while the fetch loop refreshes and pops
	mu           sync.Mutex
	queueDict    map[string]*queue.ThrottledQueue
	queueKeys    []string
	domainConfig map[string]DomainConfig
	configDirty  bool

	myIP         string
	updateTime   time.Time
	updateIPTime time.Time
}

// New creates a scheduler from config. The public IP is resolved once
// up front so the first throttle keys are built with it.
func New(client *redis.Client, cfg *config.Config, ipSource PublicIPSource, log logger.Logger) *DistributedScheduler {
	s := &DistributedScheduler{
		client:            client,
		spiderName:        cfg.SpiderName,
		persist:           cfg.Persist,
		updateInterval:    cfg.QueueRefreshInterval,
		ipRefreshInterval: cfg.IPRefreshInterval,
		itemRetries:       cfg.ItemRetries,
		defaultWindow:     cfg.QueueWindow,
		defaultHits:       cfg.QueueHits,
		moderated:         cfg.QueueModerated,
		addType:           cfg.AddType,
		addIP:             cfg.AddIP,
		ipSource:          ipSource,
		log:               log,
		stats:             metrics.Default(),
		queueDict:         make(map[string]*queue.ThrottledQueue),
		domainConfig:      make(map[string]DomainConfig),
		dupefilter: queue.NewDupeFilter(client,
			cfg.SpiderName+":dupefilter", cfg.DupeFilterTimeout, nil),
		blacklist: queue.NewBlacklist(client, cfg.SpiderName+":blacklist"),
	}

	s.updateIPAddress(context.Background())

	return s
}

// SetWatcher attaches the config watcher started by Open. Must be
// called before Open.
func (s *DistributedScheduler) SetWatcher(w Watcher) {
	s.watcher = w
}

// SetStats replaces the metrics collector (used by tests)
func (s *DistributedScheduler) SetStats(c *metrics.Collector) {
	s.stats = c
}

// Open builds the initial queue set and starts the config watcher
func (s *DistributedScheduler) Open(ctx context.Context) error {
	s.createQueues(ctx)
	s.updateTime = time.Now()

	if s.watcher != nil {
		s.watcher.Start()
	}

	s.log.Info("Scheduler opened", "spider", s.spiderName, "queues", len(s.QueueKeys()))
	return nil
}

// Close shuts the scheduler down. When persistence is off, the
// dupefilter and every known queue are purged.
func (s *DistributedScheduler) Close(ctx context.Context, reason string) {
	s.log.Info("Closing scheduler", "reason", reason)

	if s.watcher != nil {
		s.watcher.Close()
	}

	if s.persist {
		return
	}

	s.log.Warn("Clearing crawl queues and dupefilter")
	if err := s.dupefilter.Clear(ctx); err != nil {
		s.log.Error("Failed to clear dupefilter", "error", err)
	}

	s.mu.Lock()
	keys := make([]string, len(s.queueKeys))
	copy(keys, s.queueKeys)
	s.mu.Unlock()

	for _, key := range keys {
		s.mu.Lock()
		tq := s.queueDict[key]
		s.mu.Unlock()
		if tq == nil {
			continue
		}
		if err := tq.Clear(ctx); err != nil {
			s.log.Error("Failed to clear queue", "queue", key, "error", err)
		}
	}
}

// QueueKeys returns a snapshot of the discovered queue keys
func (s *DistributedScheduler) QueueKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, len(s.queueKeys))
	copy(keys, s.queueKeys)
	return keys
}

// OnConfig handles a config blob from the watcher. Runs on the
// watcher goroutine. Empty payloads are the wiped signal.
func (s *DistributedScheduler) OnConfig(blob string) {
	if strings.TrimSpace(blob) == "" {
		s.OnConfigError("config wiped")
		return
	}

	overrides, err := ParseDomainConfig(blob)
	if err != nil {
		s.log.Error("Ignoring malformed domain config", "error", err)
		return
	}

	s.log.Info("Domain config changed", "domains", len(overrides))
	s.stats.RecordConfigReload()

	s.mu.Lock()
	s.domainConfig = overrides
	s.configDirty = true

	// retune queues already in memory; new ones are built on refresh
	for domain, dc := range overrides {
		key := s.queueKey(domain)
		if tq, ok := s.queueDict[key]; ok {
			tq.SetLimits(dc.Window, dc.EffectiveHits())
			s.log.Debug("Updated queue with new config", "queue", key)
		}
	}
	s.mu.Unlock()
}

// OnConfigError handles loss of the config source: every override
// reverts to the scheduler defaults and the override map is emptied.
// Queues are kept. Runs on the watcher goroutine.
func (s *DistributedScheduler) OnConfigError(message string) {
	s.log.Info("Lost domain config, reverting to defaults",
		"message", message,
		"revert_window", s.defaultWindow,
		"revert_hits", s.defaultHits)
	s.stats.RecordConfigRevert()

	s.mu.Lock()
	for domain := range s.domainConfig {
		key := s.queueKey(domain)
		if tq, ok := s.queueDict[key]; ok {
			tq.SetLimits(s.defaultWindow, s.defaultHits)
		}
	}
	s.domainConfig = make(map[string]DomainConfig)
	s.mu.Unlock()
}

// checkConfig consumes the dirty flag
func (s *DistributedScheduler) checkConfig() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.configDirty {
		s.configDirty = false
		return true
	}
	return false
}

func (s *DistributedScheduler) isConfigDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configDirty
}

// createQueues snapshots the live queue keys from Redis and builds
// wrappers for any not yet in memory. After a config change every
// wrapper is rebuilt so new overrides take hold.
func (s *DistributedScheduler) createQueues(ctx context.Context) {
	newConf := s.checkConfig()

	pattern := s.spiderName + ":*:queue"
	keys := make([]string, 0, 16)
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.log.Error("Queue discovery scan failed", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.queueKeys = keys
	for _, key := range keys {
		if _, ok := s.queueDict[key]; ok && !newConf {
			continue
		}

		parts := strings.Split(key, ":")
		if len(parts) != 3 {
			continue
		}
		domain := parts[1]

		window := s.defaultWindow
		hits := s.defaultHits
		if dc, ok := s.domainConfig[domain]; ok {
			window = dc.Window
			hits = dc.EffectiveHits()
		}

		pq := queue.NewPriorityQueue(s.client, key)
		s.queueDict[key] = queue.NewThrottledQueue(
			s.client, pq, window, hits, s.moderated, s.throttleKey(domain))
		s.log.Debug("Added new throttled queue", "queue", key)
	}
}

// throttleKey composes the key the window counter lives under. The
// spider-name and public-IP prefixes widen or narrow the scope the
// limit is shared across.
func (s *DistributedScheduler) throttleKey(domain string) string {
	var b strings.Builder
	if s.addType {
		b.WriteString(s.spiderName)
		b.WriteString(":")
	}
	if s.addIP {
		b.WriteString(s.myIP)
		b.WriteString(":")
	}
	b.WriteString(domain)
	return b.String()
}

func (s *DistributedScheduler) queueKey(domain string) string {
	return fmt.Sprintf("%s:%s:queue", s.spiderName, domain)
}

// updateIPAddress re-queries the public IP. On failure the previous
// value is kept; the very first failure falls back to 127.0.0.1.
// Existing throttle keys keep the IP they were built with.
func (s *DistributedScheduler) updateIPAddress(ctx context.Context) {
	oldIP := s.myIP

	ip, err := s.ipSource.Lookup(ctx)
	if err != nil {
		s.log.Error("Could not reach out to get public ip", "error", err)
		if s.myIP == "" {
			s.myIP = "127.0.0.1"
		}
	} else {
		s.myIP = ip
	}

	if oldIP != s.myIP {
		s.log.Info("Changed public IP", "old", oldIP, "new", s.myIP)
	}
}

// EnqueueRequest pushes a request into the proper throttled queue.
// Requests are dropped (without error) when the dupefilter has seen
// them, their crawl is blacklisted, or they have expired.
func (s *DistributedScheduler) EnqueueRequest(ctx context.Context, req *request.Request) error {
	if !req.DontFilter {
		seen, err := s.dupefilter.RequestSeen(ctx, req)
		if err != nil {
			return fmt.Errorf("dupefilter check failed: %w", err)
		}
		if seen {
			s.log.Debug("Request not added back to redis", "url", req.URL)
			s.stats.RecordDupeDrop()
			return nil
		}
	}

	appid, crawlid := req.AppID(), req.CrawlID()

	blacklisted, err := s.blacklist.Contains(ctx, appid, crawlid)
	if err != nil {
		return fmt.Errorf("blacklist check failed: %w", err)
	}
	if blacklisted {
		s.log.Debug("Crawl blacklisted", "appid", appid, "crawlid", crawlid)
		s.stats.RecordBlacklistDrop()
		return nil
	}

	if expires := req.Expires(); expires != 0 && time.Now().Unix() > expires {
		s.log.Debug("Crawl expired", "appid", appid, "crawlid", crawlid)
		s.stats.RecordExpiredDrop()
		return nil
	}

	domain, err := domains.Registered(req.URL)
	if err != nil {
		return fmt.Errorf("cannot route request: %w", err)
	}

	spiderID := req.SpiderID()
	if spiderID == "" {
		spiderID = s.spiderName
	}
	key := fmt.Sprintf("%s:%s:queue", spiderID, domain)

	s.mu.Lock()
	tq := s.queueDict[key]
	s.mu.Unlock()

	if tq != nil {
		if err := tq.Push(ctx, req, req.Priority); err != nil {
			return err
		}
	} else {
		// unknown domain: seed the ordered set directly; this worker
		// and every other one adopts it on the next refresh
		if err := queue.NewPriorityQueue(s.client, key).Push(ctx, req, req.Priority); err != nil {
			return err
		}
	}

	s.stats.RecordEnqueue()
	s.log.Debug("Request added to queue", "appid", appid, "crawlid", crawlid, "queue", key)
	return nil
}

// FindItem hunts for a poppable record across the queue set. Keys are
// shuffled per call and the whole set is retried with a jitter sleep
// between rounds so workers drift out of lockstep.
func (s *DistributedScheduler) FindItem(ctx context.Context) *request.Request {
	keys := s.QueueKeys()
	rand.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})

	for count := 0; count <= s.itemRetries; count++ {
		for _, key := range keys {
			s.mu.Lock()
			tq := s.queueDict[key]
			s.mu.Unlock()
			if tq == nil {
				continue
			}

			item, err := tq.Pop(ctx)
			if err != nil {
				// treat as a throttle denial and move on
				s.log.Debug("Pop failed", "queue", key, "error", err)
				s.stats.RecordThrottleDenial(key)
				continue
			}
			if item != nil {
				s.stats.RecordPop(key)
				return item
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(rand.Float64() * float64(time.Second))):
		}
	}

	return nil
}

// NextRequest refreshes state if due and returns the next hydrated
// request, or nil when every queue is empty or throttled
func (s *DistributedScheduler) NextRequest(ctx context.Context) (*request.Request, error) {
	now := time.Now()

	if now.Sub(s.updateTime) > s.updateInterval || s.isConfigDirty() {
		s.updateTime = now
		s.createQueues(ctx)
	}

	if now.Sub(s.updateIPTime) > s.ipRefreshInterval {
		s.updateIPTime = now
		s.updateIPAddress(ctx)
	}

	item := s.FindItem(ctx)
	if item == nil {
		return nil, nil
	}

	s.log.Debug("Found url to crawl", "url", item.URL)

	req, err := item.Hydrate()
	if err != nil {
		s.log.Warn("Dropping record with unusable url", "url", item.URL, "error", err)
		return nil, nil
	}

	return req, nil
}

// HasPendingRequests always reports false: fetchers must treat the
// scheduler as unbounded demand and poll NextRequest on their own
// cadence
func (s *DistributedScheduler) HasPendingRequests() bool {
	return false
}
