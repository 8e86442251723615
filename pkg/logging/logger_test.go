package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/model"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")

	// A leftover log from the previous run is rotated.
	if err := os.WriteFile(serverLog, []byte("previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG"},
		Requests: config.LogSettings{Path: requestLog, Level: "INFO"},
		Events:   config.LogSettings{Path: filepath.Join(tempDir, "events.log")},
	}

	prev := slog.Default()
	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer func() {
		cleanup()
		slog.SetDefault(prev)
	}()

	if _, err := os.Stat(serverLog); os.IsNotExist(err) {
		t.Error("Server log file not created")
	}
	if _, err := os.Stat(requestLog); os.IsNotExist(err) {
		t.Error("Request log file not created")
	}
	if old, err := os.ReadFile(serverLog + ".old"); err != nil || string(old) != "previous run\n" {
		t.Errorf("expected previous log rotated to .old, got %q (%v)", old, err)
	}
	if RequestLogger == nil {
		t.Error("RequestLogger was not initialized")
	}

	slog.Info("Story: capture check", "n", 1)
	if got := GlobalLogCapture.GetLastLine(); !strings.Contains(got, "Story: capture check") {
		t.Errorf("capture did not record last line, got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"Warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"bogus": slog.LevelInfo,
		"TRACE": slog.LevelDebug - 4,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	SetEventLogPath(path)
	defer SetEventLogPath("")

	LogEvent(&model.StoryEvent{
		Timestamp: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Type:      model.EventStoryStarted,
		StoryID:   "abc",
		Title:     "Story started",
		Summary:   "Old Town to Charles Bridge, 10 segments",
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("event log not written: %v", err)
	}
	want := "[2026-03-01 09:30:00] [story_started] Story started (abc) - Old Town to Charles Bridge, 10 segments\n"
	if string(data) != want {
		t.Errorf("unexpected event line:\n got %q\nwant %q", data, want)
	}
	if got := GlobalEventCapture.GetLastLine(); got != strings.TrimSpace(want) {
		t.Errorf("event capture = %q", got)
	}
}

func TestLogCaptureWriter(t *testing.T) {
	w := &LogCaptureWriter{}
	_, _ = w.Write([]byte("first\nsecond\n"))
	if got := w.GetLastLine(); got != "second" {
		t.Errorf("expected last line 'second', got %q", got)
	}
	_, _ = w.Write([]byte("\n"))
	if got := w.GetLastLine(); got != "second" {
		t.Errorf("empty writes must not clear the line, got %q", got)
	}
}

func TestTrace(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	EnableTrace = false
	Trace(logger, "Story: hidden")
	if buf.Len() != 0 {
		t.Errorf("trace disabled but got %q", buf.String())
	}

	EnableTrace = true
	defer func() { EnableTrace = false }()
	Trace(logger, "Story: shown", "index", 3)
	if !strings.Contains(buf.String(), "Story: shown") {
		t.Errorf("trace enabled but got %q", buf.String())
	}
}

func TestInit_TraceLevel(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: filepath.Join(dir, "server.log"), Level: "trace"},
		Requests: config.LogSettings{Path: filepath.Join(dir, "requests.log"), Level: "INFO"},
	}

	prev := slog.Default()
	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer func() {
		cleanup()
		slog.SetDefault(prev)
		EnableTrace = false
	}()

	if !EnableTrace {
		t.Fatal("TRACE server level must enable Trace")
	}
	Trace(nil, "Story: trace line")
	data, err := os.ReadFile(cfg.Server.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Story: trace line") {
		t.Errorf("trace line missing from server log: %q", data)
	}
}

func TestFormatEvent_NoStoryOrSummary(t *testing.T) {
	got := formatEvent(&model.StoryEvent{
		Timestamp: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Type:      model.EventStoryReset,
		Title:     "Story reset",
	})
	if want := "[2026-03-01 09:30:00] [story_reset] Story reset"; got != want {
		t.Errorf("formatEvent = %q, want %q", got, want)
	}
}
