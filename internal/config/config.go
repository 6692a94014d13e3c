// Package config loads scheduler settings from environment variables
// with sensible defaults, matching the deployment surface of the wider
// crawl cluster (REDIS_*, SCHEDULER_*, QUEUE_*, ZOOKEEPER_*, SC_LOG_*).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/muaviaUsmani/stampede/internal/logger"
)

// Config holds all configuration for a crawl worker
type Config struct {
	// SpiderName identifies the spider this worker schedules for; it
	// prefixes every Redis key the worker touches
	SpiderName string

	// RedisHost and RedisPort locate the shared Redis
	RedisHost string
	RedisPort int

	// Persist keeps queues and the dupefilter across restarts; when
	// false both are purged on shutdown
	Persist bool

	// QueueRefreshInterval is how often the queue set is rediscovered
	QueueRefreshInterval time.Duration

	// QueueHits and QueueWindow are the default throttle: at most
	// QueueHits pops per QueueWindow seconds per domain fleet-wide
	QueueHits   int64
	QueueWindow float64

	// QueueModerated spreads hits evenly across the window instead of
	// allowing bursts
	QueueModerated bool

	// DupeFilterTimeout is the fingerprint TTL
	DupeFilterTimeout time.Duration

	// IPRefreshInterval is how often the public IP is re-queried
	IPRefreshInterval time.Duration

	// AddType prefixes throttle keys with the spider name; AddIP
	// prefixes them with the worker's public IP
	AddType bool
	AddIP   bool

	// ItemRetries is the number of extra rounds a dequeue makes over
	// the queue set before giving up
	ItemRetries int

	// PublicIPURL returns the egress IP as plain text
	PublicIPURL string

	// ZookeeperHosts, ZookeeperAssignPath and ZookeeperID locate the
	// domain-throttle config node: AssignPath + ID
	ZookeeperHosts      []string
	ZookeeperAssignPath string
	ZookeeperID         string

	// MetricsPort serves Prometheus metrics and pprof; 0 disables
	MetricsPort int

	// JanitorSchedule is a cron spec for fleet-singleton maintenance;
	// empty disables the janitor
	JanitorSchedule string

	// Logging configuration
	Logging *logger.Config
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		SpiderName:           getEnv("SPIDER_NAME", "link"),
		RedisHost:            getEnv("REDIS_HOST", "localhost"),
		RedisPort:            getEnvAsInt("REDIS_PORT", 6379),
		Persist:              getEnvAsBool("SCHEDULER_PERSIST", true),
		QueueRefreshInterval: getEnvAsSeconds("SCHEDULER_QUEUE_REFRESH", 10),
		QueueHits:            int64(getEnvAsInt("QUEUE_HITS", 10)),
		QueueWindow:          getEnvAsFloat("QUEUE_WINDOW", 60),
		QueueModerated:       getEnvAsBool("QUEUE_MODERATED", false),
		DupeFilterTimeout:    getEnvAsSeconds("DUPEFILTER_TIMEOUT", 600),
		IPRefreshInterval:    getEnvAsSeconds("SCHEDULER_IP_REFRESH", 60),
		AddType:              getEnvAsBool("SCHEDULER_TYPE_ENABLED", false),
		AddIP:                getEnvAsBool("SCHEDULER_IP_ENABLED", false),
		ItemRetries:          getEnvAsInt("SCHEDULER_ITEM_RETRIES", 3),
		PublicIPURL:          getEnv("PUBLIC_IP_URL", "http://ip.42.pl/raw"),
		ZookeeperHosts:       splitHosts(getEnv("ZOOKEEPER_HOSTS", "localhost:2181")),
		ZookeeperAssignPath:  getEnv("ZOOKEEPER_ASSIGN_PATH", "/stampede/crawler/"),
		ZookeeperID:          getEnv("ZOOKEEPER_ID", "all"),
		MetricsPort:          getEnvAsInt("METRICS_PORT", 6023),
		JanitorSchedule:      getEnv("JANITOR_SCHEDULE", "@every 30s"),
		Logging:              loadLoggingConfig(),
	}

	if cfg.SpiderName == "" {
		return nil, fmt.Errorf("SPIDER_NAME cannot be empty")
	}
	if cfg.RedisHost == "" {
		return nil, fmt.Errorf("REDIS_HOST cannot be empty")
	}
	if cfg.RedisPort <= 0 || cfg.RedisPort > 65535 {
		return nil, fmt.Errorf("REDIS_PORT must be a valid port")
	}
	if cfg.QueueHits < 0 {
		return nil, fmt.Errorf("QUEUE_HITS cannot be negative")
	}
	if cfg.QueueWindow <= 0 {
		return nil, fmt.Errorf("QUEUE_WINDOW must be positive")
	}
	if cfg.ItemRetries < 0 {
		return nil, fmt.Errorf("SCHEDULER_ITEM_RETRIES cannot be negative")
	}
	if len(cfg.ZookeeperHosts) == 0 {
		return nil, fmt.Errorf("ZOOKEEPER_HOSTS cannot be empty")
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	return cfg, nil
}

// ZookeeperPath returns the full node path the watcher subscribes to
func (c *Config) ZookeeperPath() string {
	return c.ZookeeperAssignPath + c.ZookeeperID
}

// loadLoggingConfig builds the logger configuration from SC_LOG_* vars
func loadLoggingConfig() *logger.Config {
	cfg := logger.DefaultConfig()

	cfg.Level = logger.LogLevel(getEnv("SC_LOG_LEVEL", string(logger.LevelInfo)))
	cfg.Console.Enabled = getEnvAsBool("SC_LOG_STDOUT", true)
	cfg.Console.JSON = getEnvAsBool("SC_LOG_JSON", false)
	cfg.File.Enabled = !cfg.Console.Enabled || getEnvAsBool("SC_LOG_FILE_ENABLED", false)
	cfg.File.Dir = getEnv("SC_LOG_DIR", "logs")
	cfg.File.Name = getEnv("SC_LOG_FILE", "main.log")
	cfg.File.MaxBytes = getEnvAsInt("SC_LOG_MAX_BYTES", 10*1024*1024)
	cfg.File.MaxBackups = getEnvAsInt("SC_LOG_BACKUPS", 5)

	return cfg
}

func splitHosts(s string) []string {
	var hosts []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if h := s[start:i]; h != "" {
				hosts = append(hosts, h)
			}
			start = i + 1
		}
	}
	return hosts
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * time.Second
}
