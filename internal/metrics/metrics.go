// Package metrics tracks scheduler activity: pops, throttle denials,
// enqueue outcomes, queue depths, and config reloads. Counters are kept
// in memory for snapshots and mirrored to Prometheus when a registerer
// is supplied.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalCollector *Collector
	once            sync.Once
)

// Collector tracks fleet-worker metrics
type Collector struct {
	pops            atomic.Int64
	throttleDenials atomic.Int64
	enqueues        atomic.Int64
	dupeDrops       atomic.Int64
	blacklistDrops  atomic.Int64
	expiredDrops    atomic.Int64
	configReloads   atomic.Int64
	configReverts   atomic.Int64

	mu          sync.RWMutex
	queueDepths map[string]int64
	startTime   time.Time

	promPops     *prometheus.CounterVec
	promDenials  *prometheus.CounterVec
	promEnqueues prometheus.Counter
	promDrops    *prometheus.CounterVec
	promDepths   *prometheus.GaugeVec
	promReloads  prometheus.Counter
	promReverts  prometheus.Counter
}

// Snapshot is a point-in-time view of the collector
type Snapshot struct {
	Pops            int64            `json:"pops"`
	ThrottleDenials int64            `json:"throttle_denials"`
	Enqueues        int64            `json:"enqueues"`
	DupeDrops       int64            `json:"dupe_drops"`
	BlacklistDrops  int64            `json:"blacklist_drops"`
	ExpiredDrops    int64            `json:"expired_drops"`
	ConfigReloads   int64            `json:"config_reloads"`
	ConfigReverts   int64            `json:"config_reverts"`
	QueueDepths     map[string]int64 `json:"queue_depths"`
	Uptime          time.Duration    `json:"uptime"`
}

// Default returns the global collector, registered against the default
// Prometheus registerer on first use
func Default() *Collector {
	once.Do(func() {
		globalCollector = NewCollector(prometheus.DefaultRegisterer)
	})
	return globalCollector
}

// NewCollector creates a collector. reg may be nil for in-memory only.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		queueDepths: make(map[string]int64),
		startTime:   time.Now(),
	}

	if reg != nil {
		c.promPops = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stampede_pops_total",
			Help: "Successful queue pops by registered domain queue",
		}, []string{"queue"})
		c.promDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stampede_throttle_denials_total",
			Help: "Pops denied by the distributed throttle",
		}, []string{"queue"})
		c.promEnqueues = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stampede_enqueues_total",
			Help: "Requests pushed into domain queues",
		})
		c.promDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stampede_enqueue_drops_total",
			Help: "Requests dropped before enqueue",
		}, []string{"reason"})
		c.promDepths = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stampede_queue_depth",
			Help: "Members in each domain queue at the last janitor sweep",
		}, []string{"queue"})
		c.promReloads = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stampede_config_reloads_total",
			Help: "Domain config documents applied",
		})
		c.promReverts = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stampede_config_reverts_total",
			Help: "Reverts to default throttle settings",
		})

		reg.MustRegister(c.promPops, c.promDenials, c.promEnqueues,
			c.promDrops, c.promDepths, c.promReloads, c.promReverts)
	}

	return c
}

// RecordPop counts a successful pop from the named queue
func (c *Collector) RecordPop(queue string) {
	c.pops.Add(1)
	if c.promPops != nil {
		c.promPops.WithLabelValues(queue).Inc()
	}
}

// RecordThrottleDenial counts a pop denied by the rate limiter
func (c *Collector) RecordThrottleDenial(queue string) {
	c.throttleDenials.Add(1)
	if c.promDenials != nil {
		c.promDenials.WithLabelValues(queue).Inc()
	}
}

// RecordEnqueue counts a request pushed into a queue
func (c *Collector) RecordEnqueue() {
	c.enqueues.Add(1)
	if c.promEnqueues != nil {
		c.promEnqueues.Inc()
	}
}

// RecordDupeDrop counts a request dropped by the dupefilter
func (c *Collector) RecordDupeDrop() {
	c.dupeDrops.Add(1)
	c.recordDrop("duplicate")
}

// RecordBlacklistDrop counts a request dropped by the blacklist
func (c *Collector) RecordBlacklistDrop() {
	c.blacklistDrops.Add(1)
	c.recordDrop("blacklisted")
}

// RecordExpiredDrop counts a request dropped because its crawl expired
func (c *Collector) RecordExpiredDrop() {
	c.expiredDrops.Add(1)
	c.recordDrop("expired")
}

func (c *Collector) recordDrop(reason string) {
	if c.promDrops != nil {
		c.promDrops.WithLabelValues(reason).Inc()
	}
}

// RecordConfigReload counts an applied domain config document
func (c *Collector) RecordConfigReload() {
	c.configReloads.Add(1)
	if c.promReloads != nil {
		c.promReloads.Inc()
	}
}

// RecordConfigRevert counts a revert to default throttle settings
func (c *Collector) RecordConfigRevert() {
	c.configReverts.Add(1)
	if c.promReverts != nil {
		c.promReverts.Inc()
	}
}

// RecordQueueDepth updates the observed depth of a queue
func (c *Collector) RecordQueueDepth(queue string, depth int64) {
	c.mu.Lock()
	c.queueDepths[queue] = depth
	c.mu.Unlock()

	if c.promDepths != nil {
		c.promDepths.WithLabelValues(queue).Set(float64(depth))
	}
}

// GetSnapshot returns a copy of the current metrics
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	depths := make(map[string]int64, len(c.queueDepths))
	for k, v := range c.queueDepths {
		depths[k] = v
	}
	c.mu.RUnlock()

	return Snapshot{
		Pops:            c.pops.Load(),
		ThrottleDenials: c.throttleDenials.Load(),
		Enqueues:        c.enqueues.Load(),
		DupeDrops:       c.dupeDrops.Load(),
		BlacklistDrops:  c.blacklistDrops.Load(),
		ExpiredDrops:    c.expiredDrops.Load(),
		ConfigReloads:   c.configReloads.Load(),
		ConfigReverts:   c.configReverts.Load(),
		QueueDepths:     depths,
		Uptime:          time.Since(c.startTime),
	}
}
