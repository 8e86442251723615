package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/4ndr3jS/TravelStory/pkg/model"
	"github.com/4ndr3jS/TravelStory/pkg/playback"
	"github.com/4ndr3jS/TravelStory/pkg/story"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientBuffer   = 16
	broadcastQueue = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The player is served from other origins during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamMessage is pushed to websocket clients.
type StreamMessage struct {
	Type     string              `json:"type"`
	At       time.Time           `json:"at"`
	Snapshot *story.Snapshot     `json:"snapshot,omitempty"`
	Segment  *model.StorySegment `json:"segment,omitempty"`
	Error    *story.ErrorInfo    `json:"error,omitempty"`
	Clip     *playback.Clip      `json:"clip,omitempty"`
}

// SnapshotSource provides the state sent to newly connected clients.
type SnapshotSource interface {
	Snapshot() story.Snapshot
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans story events out to websocket clients. Slow clients are
// disconnected instead of stalling the others.
type Hub struct {
	src       SnapshotSource
	broadcast chan []byte

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub creates a Hub. Call Run to start delivery.
func NewHub(src SnapshotSource) *Hub {
	return &Hub{
		src:       src,
		broadcast: make(chan []byte, broadcastQueue),
		clients:   make(map[*wsClient]struct{}),
	}
}

// OnStoryEvent implements story.Observer.
func (h *Hub) OnStoryEvent(e story.Event) {
	snap := e.Snapshot
	h.enqueue(StreamMessage{Type: string(e.Type), At: e.At, Snapshot: &snap, Segment: e.Segment, Error: e.Error})
}

// OnClip announces a rendered clip. It is registered with the renderer.
func (h *Hub) OnClip(c playback.Clip) {
	h.enqueue(StreamMessage{Type: "audio_ready", At: c.RenderedAt, Clip: &c})
}

func (h *Hub) enqueue(m StreamMessage) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Error("Hub: failed to encode message", "type", m.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		slog.Warn("Hub: broadcast queue full, dropping message", "type", m.Type)
	}
}

// Run delivers queued messages until ctx is done, then closes all clients.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.closed = true
			for c := range h.clients {
				h.dropLocked(c)
			}
			h.mu.Unlock()
			return
		case data := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					slog.Warn("Hub: client too slow, disconnecting")
					h.dropLocked(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) dropLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

// HandleWS handles GET /api/story/ws. The current snapshot is sent first.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "story stream stopped"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Hub: websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	snap := h.src.Snapshot()
	hello, err := json.Marshal(StreamMessage{Type: "snapshot", At: time.Now(), Snapshot: &snap})
	if err == nil {
		c.send <- hello
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Debug("Hub: client connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

// readPump only services control frames; clients do not send commands here.
func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
