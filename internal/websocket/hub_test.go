package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/doc-sanitizer/internal/filestore"
	"github.com/raaihank/doc-sanitizer/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, cfg HubConfig) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(cfg, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestPublishFileEvent(t *testing.T) {
	hub, srv := startHub(t, HubConfig{BroadcastFiles: true})
	conn := dial(t, srv, nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.PublishFileEvent(filestore.Event{
		Type: filestore.EventSaved,
		File: filestore.StoredFile{ID: "f1", OriginalFilename: "notes.txt", Size: 12},
		At:   time.Now(),
	})

	ev := readEvent(t, conn)
	assert.Equal(t, EventTypeFileSaved, ev.Type)
	data, ok := ev.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "f1", data["file_id"])
	assert.Equal(t, "notes.txt", data["original_filename"])
}

func TestDisabledEventsAreNotSent(t *testing.T) {
	hub, srv := startHub(t, HubConfig{BroadcastSanitize: true})
	conn := dial(t, srv, nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.PublishFileEvent(filestore.Event{Type: filestore.EventDeleted, At: time.Now()})
	hub.BroadcastEvent(Event{Type: EventTypeSanitize, Data: SanitizeEvent{Profile: "Default", Success: true}})

	ev := readEvent(t, conn)
	assert.Equal(t, EventTypeSanitize, ev.Type)
}

func TestSubscriptionFilters(t *testing.T) {
	hub, srv := startHub(t, HubConfig{BroadcastFiles: true, BroadcastSanitize: true})
	conn := dial(t, srv, nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type: "subscribe",
		Data: SubscriptionRequest{Events: []EventType{EventTypeSanitize}},
	}))
	// round-trip a ping so the subscription is applied before broadcasting
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))
	assert.Equal(t, EventType("pong"), readEvent(t, conn).Type)

	hub.PublishFileEvent(filestore.Event{Type: filestore.EventSaved, At: time.Now()})
	hub.BroadcastEvent(Event{Type: EventTypeSanitize})

	assert.Equal(t, EventTypeSanitize, readEvent(t, conn).Type)
}

func TestConnectionEventsAndStats(t *testing.T) {
	hub, srv := startHub(t, HubConfig{BroadcastConnections: true})
	first := dial(t, srv, nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	second := dial(t, srv, nil)
	ev := readEvent(t, first)
	assert.Equal(t, EventTypeConnection, ev.Type)
	assert.Equal(t, "connected", ev.Data.(map[string]interface{})["action"])

	second.Close()
	ev = readEvent(t, first)
	assert.Equal(t, "disconnected", ev.Data.(map[string]interface{})["action"])

	stats := hub.GetStats()
	assert.Equal(t, int64(2), stats.TotalConnections)
	assert.Equal(t, int64(1), stats.ActiveConnections)
}

func TestBasicAuth(t *testing.T) {
	_, srv := startHub(t, HubConfig{Username: "admin", Password: "pw"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.SetBasicAuth("admin", "pw")
	dial(t, srv, http.Header{"Authorization": req.Header["Authorization"]})
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub(HubConfig{AllowedOrigins: []string{"http://localhost:3000"}}, logger.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, hub.checkOrigin(r))

	r.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, hub.checkOrigin(r))

	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, hub.checkOrigin(r))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", ClientIP(r))
}
