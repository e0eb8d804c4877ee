package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeFileSaved is sent after an upload is stored
	EventTypeFileSaved EventType = "file_saved"
	// EventTypeFileDeleted is sent after an explicit or post-sanitize delete
	EventTypeFileDeleted EventType = "file_deleted"
	// EventTypeFileExpired is sent when the reaper removes a file past its TTL
	EventTypeFileExpired EventType = "file_expired"
	// EventTypeOrphanRemoved is sent when the reaper removes an untracked file
	EventTypeOrphanRemoved EventType = "orphan_removed"
	// EventTypeSanitize is sent when a sanitization run finishes
	EventTypeSanitize EventType = "sanitize"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// FileEvent describes a file lifecycle transition
type FileEvent struct {
	FileID           string    `json:"file_id"`
	OriginalFilename string    `json:"original_filename"`
	Size             int64     `json:"size"`
	CreatedAt        time.Time `json:"created_at"`
}

// SanitizeEvent describes the outcome of one sanitization run
type SanitizeEvent struct {
	FileID       string  `json:"file_id,omitempty"`
	Filename     string  `json:"filename,omitempty"`
	Profile      string  `json:"profile"`
	Model        string  `json:"model"`
	SourceType   string  `json:"source_type,omitempty"`
	Cached       bool    `json:"cached"`
	Success      bool    `json:"success"`
	Error        string  `json:"error,omitempty"`
	ProcessingMS float64 `json:"processing_ms"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	FilesStored      int    `json:"files_stored"`
	Profiles         int    `json:"profiles"`
	ConnectedClients int    `json:"connected_clients"`
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
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest restricts which event types a client receives
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	IP           string
	UserAgent    string
}
