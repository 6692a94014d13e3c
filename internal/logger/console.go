package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ConsoleLogger implements Tier 1: console/terminal logging.
// JSON mode emits one JSON object per line; text mode emits a
// human-readable line with an optionally colored level tag.
type ConsoleLogger struct {
	config *Config
	out    io.Writer
	mu     sync.Mutex

	debugTag string
	infoTag  string
	warnTag  string
	errorTag string
}

// NewConsoleLogger creates a new console logger writing to stdout
func NewConsoleLogger(config *Config) *ConsoleLogger {
	cl := &ConsoleLogger{
		config: config,
		out:    os.Stdout,
	}
	cl.buildTags()
	return cl
}

func (cl *ConsoleLogger) buildTags() {
	if cl.config.Console.Color && !cl.config.Console.JSON {
		cl.debugTag = color.New(color.FgCyan).Sprint("DEBUG")
		cl.infoTag = color.New(color.FgGreen).Sprint("INFO")
		cl.warnTag = color.New(color.FgYellow).Sprint("WARN")
		cl.errorTag = color.New(color.FgRed, color.Bold).Sprint("ERROR")
	} else {
		cl.debugTag = "DEBUG"
		cl.infoTag = "INFO"
		cl.warnTag = "WARN"
		cl.errorTag = "ERROR"
	}
}

// Write renders the entry and writes it to the console
func (cl *ConsoleLogger) Write(entry *LogEntry) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.config.Console.JSON {
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: failed to marshal entry: %v\n", err)
			return
		}
		fmt.Fprintln(cl.out, string(data))
		return
	}

	var b strings.Builder
	b.WriteString(entry.Timestamp)
	b.WriteString(" [")
	b.WriteString(cl.levelTag(entry.Level))
	b.WriteString("]")
	if entry.Component != "" {
		b.WriteString(" ")
		b.WriteString(string(entry.Component))
		b.WriteString(":")
	}
	b.WriteString(" ")
	b.WriteString(entry.Message)

	for k, v := range entry.Fields {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(fmt.Sprint(v))
	}

	fmt.Fprintln(cl.out, b.String())
}

func (cl *ConsoleLogger) levelTag(level LogLevel) string {
	switch level {
	case LevelDebug:
		return cl.debugTag
	case LevelWarn:
		return cl.warnTag
	case LevelError:
		return cl.errorTag
	default:
		return cl.infoTag
	}
}

// Close is a no-op for the console tier; writes are synchronous
func (cl *ConsoleLogger) Close() error {
	return nil
}
