package logger

import (
	"fmt"
	"time"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component identifies which part of the system generated the log
type Component string

const (
	ComponentScheduler Component = "scheduler"
	ComponentQueue     Component = "queue"
	ComponentZookeeper Component = "zookeeper"
	ComponentWorker    Component = "worker"
	ComponentFeeder    Component = "feeder"
	ComponentJanitor   Component = "janitor"
	ComponentRedis     Component = "redis"
)

// Config holds the logging configuration for both tiers
type Config struct {
	Level LogLevel `json:"level"`

	// Tier 1: Console
	Console ConsoleConfig `json:"console"`

	// Tier 2: Rotating file
	File FileConfig `json:"file"`
}

// ConsoleConfig configures console/terminal logging
type ConsoleConfig struct {
	Enabled bool `json:"enabled"`
	JSON    bool `json:"json"`  // JSON lines instead of colored text
	Color   bool `json:"color"` // colored output (text mode only)
}

// FileConfig configures rotating file logging
type FileConfig struct {
	Enabled    bool   `json:"enabled"`
	Dir        string `json:"dir"`
	Name       string `json:"name"`
	MaxBytes   int    `json:"max_bytes"`
	MaxBackups int    `json:"max_backups"`

	// Batch settings for the async writer
	BufferSize    int           `json:"buffer_size"`
	BatchSize     int           `json:"batch_size"`
	BatchInterval time.Duration `json:"batch_interval"`
}

// DefaultConfig returns a config that logs info and above to stdout as text
func DefaultConfig() *Config {
	return &Config{
		Level: LevelInfo,
		Console: ConsoleConfig{
			Enabled: true,
			JSON:    false,
			Color:   true,
		},
		File: FileConfig{
			Enabled:       false,
			Dir:           "logs",
			Name:          "main.log",
			MaxBytes:      10 * 1024 * 1024,
			MaxBackups:    5,
			BufferSize:    10000,
			BatchSize:     100,
			BatchInterval: 100 * time.Millisecond,
		},
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	switch c.Level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		return fmt.Errorf("invalid log level: %q", c.Level)
	}

	if !c.Console.Enabled && !c.File.Enabled {
		return fmt.Errorf("at least one log tier must be enabled")
	}

	if c.File.Enabled {
		if c.File.Name == "" {
			return fmt.Errorf("file logging enabled but no file name set")
		}
		if c.File.MaxBytes <= 0 {
			return fmt.Errorf("file logging max bytes must be positive")
		}
		if c.File.BufferSize <= 0 {
			c.File.BufferSize = 10000
		}
		if c.File.BatchSize <= 0 {
			c.File.BatchSize = 100
		}
		if c.File.BatchInterval <= 0 {
			c.File.BatchInterval = 100 * time.Millisecond
		}
	}

	return nil
}

// severity orders levels for filtering
func severity(level LogLevel) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}
