package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/privacy"
)

func startHub(t *testing.T, cfg *HubConfig) (*Hub, string) {
	t.Helper()

	hub := NewHub(cfg, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var event map[string]json.RawMessage
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestHubBroadcast(t *testing.T) {
	hub, url := startHub(t, &HubConfig{BroadcastDetections: true, BroadcastConnections: true})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The connected event confirms registration
	event := readEvent(t, conn)
	assert.JSONEq(t, `"connection"`, string(event["type"]))

	hub.BroadcastEvent(Event{
		Type:      EventTypePIIDetection,
		Timestamp: time.Now(),
		Data: PIIDetectionEvent{
			RecordID: "r-1",
			Findings: []privacy.Finding{{Field: "phone", Category: privacy.CategoryPhone, Source: privacy.SourceShape}},
			Categories: map[privacy.Category]int{
				privacy.CategoryPhone: 1,
			},
		},
	})

	event = readEvent(t, conn)
	assert.JSONEq(t, `"pii_detection"`, string(event["type"]))

	var detection PIIDetectionEvent
	require.NoError(t, json.Unmarshal(event["data"], &detection))
	assert.Equal(t, "r-1", detection.RecordID)
	assert.Equal(t, 1, detection.Categories[privacy.CategoryPhone])

	stats := hub.GetStats()
	assert.Equal(t, int64(1), stats.TotalConnections)
	assert.Equal(t, int64(1), stats.ActiveConnections)
}

func TestHubPing(t *testing.T) {
	_, url := startHub(t, &HubConfig{BroadcastConnections: true})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readEvent(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))
	event := readEvent(t, conn)
	assert.JSONEq(t, `"pong"`, string(event["type"]))
}

func TestHubBasicAuth(t *testing.T) {
	_, url := startHub(t, &HubConfig{BroadcastConnections: true, Username: "ops", Password: "s3cret"})

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("ops:s3cret")))
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	event := readEvent(t, conn)
	assert.JSONEq(t, `"connection"`, string(event["type"]))
}

func TestShouldBroadcastEvent(t *testing.T) {
	hub := NewHub(&HubConfig{BroadcastDetections: true}, zap.NewNop())
	assert.True(t, hub.shouldBroadcastEvent(EventTypePIIDetection))
	assert.False(t, hub.shouldBroadcastEvent(EventTypeConnection))
	assert.False(t, hub.shouldBroadcastEvent(EventTypePong))

	assert.False(t, NewHub(nil, zap.NewNop()).shouldBroadcastEvent(EventTypePIIDetection))
}

func TestBroadcastEventDropsWhenFull(t *testing.T) {
	hub := NewHub(&HubConfig{BroadcastDetections: true}, zap.NewNop())

	for i := 0; i < cap(hub.broadcast)+3; i++ {
		hub.BroadcastEvent(Event{Type: EventTypePIIDetection})
	}
	assert.Equal(t, int64(3), hub.GetStats().DroppedEvents)
}

func TestClientSubscribe(t *testing.T) {
	client := &Client{}
	assert.True(t, client.wants(EventTypeConnection))

	client.subscribe([]EventType{EventTypePIIDetection})
	assert.True(t, client.wants(EventTypePIIDetection))
	assert.False(t, client.wants(EventTypeConnection))

	client.subscribe(nil)
	assert.True(t, client.wants(EventTypeConnection))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", clientIP(r))

	r.Header.Set("X-Real-IP", "172.16.0.9")
	assert.Equal(t, "172.16.0.9", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(r))
}
