// Package events mirrors story controller events onto a NATS subject and
// accepts app lifecycle states from it.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/story"
)

const bufferSize = 64

// Message is the wire form of a story event.
type Message struct {
	Type       story.EventType  `json:"type"`
	At         time.Time        `json:"at"`
	StoryID    string           `json:"story_id,omitempty"`
	Phase      story.Phase      `json:"phase"`
	Segment    int              `json:"segment,omitempty"`
	Buffered   int              `json:"buffered"`
	Total      int              `json:"total"`
	Cursor     int              `json:"cursor"`
	Generating bool             `json:"generating"`
	Error      *story.ErrorInfo `json:"error,omitempty"`
	DurationMs int64            `json:"duration_ms,omitempty"`
}

func toMessage(e story.Event) Message {
	m := Message{
		Type:       e.Type,
		At:         e.At,
		StoryID:    e.StoryID,
		Phase:      e.Snapshot.Phase,
		Buffered:   e.Snapshot.Buffered,
		Total:      e.Snapshot.Total,
		Cursor:     e.Snapshot.CursorIndex,
		Generating: e.Snapshot.Generating,
		Error:      e.Error,
		DurationMs: e.Duration.Milliseconds(),
	}
	if e.Segment != nil {
		m.Segment = e.Segment.Index
	}
	return m
}

// Publisher forwards controller events to NATS from its own goroutine.
// Events are dropped, not queued without bound, when NATS falls behind.
type Publisher struct {
	conn    *nats.Conn
	subject string
	ch      chan story.Event
	dropped atomic.Int64
	sent    atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// Connect dials NATS and returns a publisher for cfg.Subject.
func Connect(cfg config.EventsConfig) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("no NATS url configured")
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("Events: NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("Events: NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	slog.Info("Events: connected to NATS", "url", conn.ConnectedUrl(), "subject", cfg.Subject)
	return New(conn, cfg.Subject), nil
}

// New wraps an existing connection.
func New(conn *nats.Conn, subject string) *Publisher {
	return &Publisher{
		conn:    conn,
		subject: subject,
		ch:      make(chan story.Event, bufferSize),
		done:    make(chan struct{}),
	}
}

// OnStoryEvent implements story.Observer.
func (p *Publisher) OnStoryEvent(e story.Event) {
	select {
	case p.ch <- e:
	default:
		p.dropped.Add(1)
	}
}

// Run publishes buffered events until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-p.ch:
			if err := p.publish(e); err != nil {
				slog.Warn("Events: publish failed", "type", e.Type, "error", err)
			}
		}
	}
}

func (p *Publisher) publish(e story.Event) error {
	data, err := json.Marshal(toMessage(e))
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject+"."+string(e.Type), data); err != nil {
		return err
	}
	p.sent.Add(1)
	return nil
}

// AppStates subscribes to <subject>.appstate and delivers parsed states on
// the returned channel until ctx is done. Unknown states are logged and
// skipped. The channel is never closed; consumers stop on ctx.
func (p *Publisher) AppStates(ctx context.Context) (<-chan story.AppState, error) {
	out := make(chan story.AppState, 8)
	sub, err := p.conn.Subscribe(p.subject+".appstate", func(msg *nats.Msg) {
		var body struct {
			State string `json:"state"`
		}
		raw := string(msg.Data)
		if json.Unmarshal(msg.Data, &body) == nil && body.State != "" {
			raw = body.State
		}
		s, err := story.ParseAppState(raw)
		if err != nil {
			slog.Warn("Events: ignoring app state", "value", raw, "error", err)
			return
		}
		select {
		case out <- s:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe app state: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return out, nil
}

// Stats returns sent and dropped counts.
func (p *Publisher) Stats() (sent, dropped int64) {
	return p.sent.Load(), p.dropped.Load()
}

// Close drains the connection.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	})
}
