package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mediafetch/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "mf.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func newBufferLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, level)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	return l, &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, "warn")

	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message missing")
	}
	if !strings.Contains(out, `"app":"mediafetch"`) {
		t.Error("app field missing")
	}
}

func TestFieldChaining(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")

	base := l.WithField("collection", "4chan_g_123")
	base.WithFields(map[string]interface{}{
		"tasks": 4,
		"dur":   2 * time.Second,
	}).Info("chained fields")
	base.Info("parent unchanged")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"collection":"4chan_g_123"`) || !strings.Contains(lines[0], `"tasks":4`) {
		t.Errorf("chained fields missing: %s", lines[0])
	}
	if strings.Contains(lines[1], `"tasks"`) {
		t.Errorf("child fields leaked into parent: %s", lines[1])
	}
}

func TestWithError(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")

	if l.WithError(nil) != l {
		t.Error("WithError(nil) should return the same logger")
	}

	l.WithError(errors.New("disk full")).Error("commit failed")
	if !strings.Contains(buf.String(), "disk full") {
		t.Error("error text missing from output")
	}
}

func TestLogFetch(t *testing.T) {
	tl := NewTestLogger()

	LogFetch(tl, "https://x/a.jpg", "/out/a.jpg", "succeeded", 1, 10, nil)
	LogFetch(tl, "https://x/b.jpg", "/out/b.jpg", "failed_permanent", 1, 0, errors.New("404"))

	msgs := tl.GetMessages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Level != "DEBUG" || msgs[0].Fields["url"] != "https://x/a.jpg" {
		t.Errorf("unexpected success message: %+v", msgs[0])
	}
	if msgs[1].Level != "WARN" || msgs[1].Error == nil {
		t.Errorf("unexpected failure message: %+v", msgs[1])
	}
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("job", "j1")
	child.WithError(errors.New("boom")).Warn("w")

	if !tl.HasMessage("w") {
		t.Fatal("child message not visible on parent")
	}
	msg := tl.GetMessagesByLevel("WARN")[0]
	if msg.Fields["job"] != "j1" || msg.Error == nil {
		t.Errorf("fields or error lost: %+v", msg)
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear did not remove messages")
	}
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(NewNopLogger())

	Info("global info")
	WithField("k", "v").Warn("global warn")

	if !tl.HasMessage("global info") || !tl.HasMessage("global warn") {
		t.Error("global helpers did not reach the configured logger")
	}
}
