package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/pii-sentinel/internal/privacy"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypePIIDetection represents a PII detection event
	EventTypePIIDetection EventType = "pii_detection"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// PIIDetectionEvent describes a redacted record. It never carries field values.
type PIIDetectionEvent struct {
	RecordID         string                   `json:"record_id"`
	Findings         []privacy.Finding        `json:"findings"`
	Categories       map[privacy.Category]int `json:"categories"`
	Composite        bool                     `json:"composite"`
	QuasiIdentifiers int                      `json:"quasi_identifiers"`
	ProcessingMS     float64                  `json:"processing_ms"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type   string      `json:"type"`
	Events []EventType `json:"events,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	Events      map[EventType]bool // nil means every event
	ConnectedAt time.Time
	LastPing    time.Time
	IP          string
	UserAgent   string

	mu sync.Mutex
}

// subscribe limits the client to the given event types. An empty list
// restores every event.
func (c *Client) subscribe(events []EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(events) == 0 {
		c.Events = nil
		return
	}
	c.Events = make(map[EventType]bool, len(events))
	for _, e := range events {
		c.Events[e] = true
	}
}

// wants reports whether the client is subscribed to an event type
func (c *Client) wants(eventType EventType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.Events == nil || c.Events[eventType]
}
