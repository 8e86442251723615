package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4ndr3jS/TravelStory/pkg/model"
	"github.com/4ndr3jS/TravelStory/pkg/playback"
	"github.com/4ndr3jS/TravelStory/pkg/story"
)

var _ story.Observer = (*Hub)(nil)

func readMessage(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m StreamMessage
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHub_StreamsEvents(t *testing.T) {
	ctrl := &fakeController{snap: story.Snapshot{Phase: story.PhaseReady, Buffered: 1, Total: 5}}
	hub := NewHub(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ts := httptest.NewServer(NewServer("127.0.0.1:0", Handlers{Hub: hub}, nil).Handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/story/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	hello := readMessage(t, conn)
	assert.Equal(t, "snapshot", hello.Type)
	require.NotNil(t, hello.Snapshot)
	assert.Equal(t, 5, hello.Snapshot.Total)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	seg := model.StorySegment{Index: 2, Text: "Rain hammered the Ringstraße."}
	hub.OnStoryEvent(story.Event{
		Type:     story.EventSegmentAdded,
		At:       time.Now(),
		StoryID:  "s1",
		Segment:  &seg,
		Snapshot: story.Snapshot{Phase: story.PhaseBuffering, Buffered: 2, Total: 5, Generating: true},
	})
	m := readMessage(t, conn)
	assert.Equal(t, string(story.EventSegmentAdded), m.Type)
	require.NotNil(t, m.Segment)
	assert.Equal(t, 2, m.Segment.Index)
	assert.True(t, m.Snapshot.Generating)

	hub.OnClip(playback.Clip{StoryID: "s1", Index: 2, Format: "mp3", Path: "/secret/path.mp3", RenderedAt: time.Now()})
	m = readMessage(t, conn)
	assert.Equal(t, "audio_ready", m.Type)
	require.NotNil(t, m.Clip)
	assert.Equal(t, 2, m.Clip.Index)
	assert.Empty(t, m.Clip.Path, "file paths are not exposed")
}

func TestHub_ClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub(&fakeController{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ts := httptest.NewServer(NewServer("127.0.0.1:0", Handlers{Hub: hub}, nil).Handler)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/story/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "server closes the stream")
	assert.Equal(t, 0, hub.Clients())
}

func TestHub_RefusesClientsAfterShutdown(t *testing.T) {
	hub := NewHub(&fakeController{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	ts := httptest.NewServer(NewServer("127.0.0.1:0", Handlers{Hub: hub}, nil).Handler)
	defer ts.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/story/ws", nil)
	if conn != nil {
		conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 0, hub.Clients())
}
