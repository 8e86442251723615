package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/model"
)

// LevelTrace sits below DEBUG. Selecting it turns on Trace output.
const LevelTrace = slog.LevelDebug - 4

const eventTimeLayout = "2006-01-02 15:04:05"

// RequestLogger writes one line per served API request.
var RequestLogger *slog.Logger

var (
	eventMu   sync.Mutex
	eventPath string
)

// Init rotates the previous run's files to .old, installs the server logger
// as the slog default and opens the request log. The returned func closes
// the open files.
func Init(cfg *config.LogConfig) (func(), error) {
	for _, p := range []string{cfg.Server.Path, cfg.Requests.Path, cfg.Events.Path, cfg.LLM.Path, cfg.TTS.Path} {
		rotate(p)
	}
	SetEventLogPath(cfg.Events.Path)

	serverLevel := ParseLevel(cfg.Server.Level)
	serverFile, err := openLog(cfg.Server.Path)
	if err != nil {
		return nil, fmt.Errorf("server log: %w", err)
	}
	requestFile, err := openLog(cfg.Requests.Path)
	if err != nil {
		serverFile.Close()
		return nil, fmt.Errorf("request log: %w", err)
	}

	slog.SetDefault(slog.New(teeHandler{
		fileHandler(serverFile, serverLevel),
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: max(serverLevel, slog.LevelInfo)}),
		slog.NewTextHandler(GlobalLogCapture, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}))
	RequestLogger = slog.New(fileHandler(requestFile, ParseLevel(cfg.Requests.Level)))
	EnableTrace = serverLevel <= LevelTrace

	return func() {
		serverFile.Close()
		requestFile.Close()
	}, nil
}

func openLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// fileHandler adds source locations at DEBUG and below.
func fileHandler(f *os.File, level slog.Level) slog.Handler {
	return slog.NewTextHandler(f, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})
}

// ParseLevel maps a config level name to a slog level. Unknown names fall
// back to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// teeHandler passes each record to every member that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler takes the record by value
func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) derive(fn func(slog.Handler) slog.Handler) teeHandler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = fn(h)
	}
	return out
}

// rotate keeps exactly one previous generation of a log file.
func rotate(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	old := path + ".old"
	_ = os.Remove(old)
	_ = os.Rename(path, old)
}

// SetEventLogPath sets the story event log file. An empty path disables it.
func SetEventLogPath(path string) {
	eventMu.Lock()
	defer eventMu.Unlock()
	eventPath = path
}

// LogEvent appends a story milestone to the event log and records it as the
// latest event.
func LogEvent(event *model.StoryEvent) {
	eventMu.Lock()
	defer eventMu.Unlock()
	if eventPath == "" {
		return
	}

	line := formatEvent(event)
	f, err := openLog(eventPath)
	if err != nil {
		slog.Error("Event log unavailable", "path", eventPath, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		slog.Error("Event log write failed", "error", err)
	}
	_, _ = GlobalEventCapture.Write([]byte(line))
}

func formatEvent(ev *model.StoryEvent) string {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", ts.Format(eventTimeLayout), ev.Type, ev.Title)
	if ev.StoryID != "" {
		fmt.Fprintf(&b, " (%s)", ev.StoryID)
	}
	if ev.Summary != "" {
		b.WriteString(" - " + ev.Summary)
	}
	return b.String()
}
