package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newCapturedLogger(t *testing.T, level LogLevel, jsonMode bool) (*MultiLogger, *bytes.Buffer) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Level = level
	cfg.Console.JSON = jsonMode
	cfg.Console.Color = false

	ml, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	buf := &bytes.Buffer{}
	ml.console.out = buf
	return ml, buf
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}

	cfg.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for bad level")
	}

	cfg = DefaultConfig()
	cfg.Console.Enabled = false
	if err := cfg.Validate(); err == nil {
		t.Error("expected error with every tier disabled")
	}
}

func TestMultiLogger_LevelFiltering(t *testing.T) {
	ml, buf := newCapturedLogger(t, LevelWarn, false)

	ml.Debug("quiet")
	ml.Info("quiet too")
	ml.Warn("loud")
	ml.Error("louder")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("expected debug/info suppressed, got %q", out)
	}
	if !strings.Contains(out, "loud") || !strings.Contains(out, "louder") {
		t.Errorf("expected warn/error emitted, got %q", out)
	}
}

func TestMultiLogger_JSONEntries(t *testing.T) {
	ml, buf := newCapturedLogger(t, LevelInfo, true)

	ml.WithComponent(ComponentScheduler).Info("queue refreshed", "queues", 3)

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON entry: %v (%q)", err, buf.String())
	}
	if entry.Level != LevelInfo || entry.Message != "queue refreshed" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Component != ComponentScheduler {
		t.Errorf("expected component tag, got %q", entry.Component)
	}
	if entry.Fields["queues"] != float64(3) {
		t.Errorf("expected field queues=3, got %v", entry.Fields)
	}
}

func TestMultiLogger_WithFields(t *testing.T) {
	ml, buf := newCapturedLogger(t, LevelInfo, true)

	tagged := ml.WithFields(map[string]interface{}{"spider": "link"})
	tagged.Info("hello")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON entry: %v", err)
	}
	if entry.Fields["spider"] != "link" {
		t.Errorf("expected base field carried, got %v", entry.Fields)
	}
}

func TestFileLogger_WritesBatches(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Console.Enabled = false
	cfg.File.Enabled = true
	cfg.File.Dir = dir
	cfg.File.Name = "test.log"
	cfg.File.BatchInterval = 10 * time.Millisecond

	ml, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	ml.Info("persisted line", "n", 1)
	if err := ml.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "persisted line") {
		t.Errorf("expected entry in file, got %q", data)
	}
}
