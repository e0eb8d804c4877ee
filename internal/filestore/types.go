package filestore

import (
	"errors"
	"time"
)

// Defaults used when Config leaves a field empty
const (
	DefaultTTL             = 300 * time.Second
	DefaultCleanupInterval = 60 * time.Second
)

var (
	// ErrNotFound is returned when no live file matches an id
	ErrNotFound = errors.New("file not found")
	// ErrInvalidID is returned for ids that are not canonical UUIDs
	ErrInvalidID = errors.New("invalid file id")
)

// StoredFile describes one uploaded document waiting to be processed
type StoredFile struct {
	ID               string    `json:"file_id"`
	OriginalFilename string    `json:"original_filename"`
	Size             int64     `json:"size"`
	CreatedAt        time.Time `json:"created_at"`
	Path             string    `json:"-"`
}

// ExpiresAt returns when the file becomes eligible for reaping
func (f StoredFile) ExpiresAt(ttl time.Duration) time.Time {
	return f.CreatedAt.Add(ttl)
}

// EventType names a file lifecycle transition
type EventType string

// Event types
const (
	EventSaved         EventType = "file_saved"
	EventDeleted       EventType = "file_deleted"
	EventExpired       EventType = "file_expired"
	EventOrphanRemoved EventType = "orphan_removed"
)

// Event is published to observers after a lifecycle transition
type Event struct {
	Type EventType
	File StoredFile
	At   time.Time
}

// Config contains file store configuration
type Config struct {
	Dir             string
	TTL             time.Duration
	CleanupInterval time.Duration
}
