package logger

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileLogger implements Tier 2: rotating file logging.
// Entries are buffered on a channel and flushed in batches to a
// lumberjack-rotated file as JSON lines.
type FileLogger struct {
	config    *Config
	logger    *lumberjack.Logger
	buffer    chan *LogEntry
	closeChan chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewFileLogger creates a new file logger
func NewFileLogger(config *Config) (*FileLogger, error) {
	if !config.File.Enabled {
		return nil, fmt.Errorf("file logging is not enabled")
	}

	lumber := &lumberjack.Logger{
		Filename:   filepath.Join(config.File.Dir, config.File.Name),
		MaxSize:    config.File.MaxBytes / (1024 * 1024),
		MaxBackups: config.File.MaxBackups,
		Compress:   true,
	}
	if lumber.MaxSize < 1 {
		lumber.MaxSize = 1
	}

	fl := &FileLogger{
		config:    config,
		logger:    lumber,
		buffer:    make(chan *LogEntry, config.File.BufferSize),
		closeChan: make(chan struct{}),
	}

	fl.wg.Add(1)
	go fl.writeLoop()

	return fl, nil
}

// Write queues an entry for batched writing. Entries are dropped when
// the buffer is full rather than blocking the caller.
func (fl *FileLogger) Write(entry *LogEntry) {
	select {
	case fl.buffer <- entry:
	default:
	}
}

// writeLoop drains the buffer, flushing on batch size or interval
func (fl *FileLogger) writeLoop() {
	defer fl.wg.Done()

	batch := make([]*LogEntry, 0, fl.config.File.BatchSize)
	ticker := time.NewTicker(fl.config.File.BatchInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, entry := range batch {
			data, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			fl.logger.Write(append(data, '\n'))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-fl.buffer:
			batch = append(batch, entry)
			if len(batch) >= fl.config.File.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-fl.closeChan:
			// drain whatever is left
			for {
				select {
				case entry := <-fl.buffer:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close flushes pending entries and closes the underlying file
func (fl *FileLogger) Close() error {
	fl.closeOnce.Do(func() {
		close(fl.closeChan)
	})
	fl.wg.Wait()
	return fl.logger.Close()
}
