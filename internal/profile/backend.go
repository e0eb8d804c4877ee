package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Backend persists the whole profile collection as a single document
type Backend interface {
	// Load returns the persisted collection. It returns errNoCollection when
	// nothing has been persisted yet and wraps ErrCorruptStore when the
	// persisted document cannot be decoded.
	Load(ctx context.Context) (*Collection, error)
	// Save atomically replaces the persisted collection.
	Save(ctx context.Context, coll *Collection) error
	// Quarantine moves the persisted document out of the way and returns
	// where it went, so a fresh collection can be bootstrapped.
	Quarantine(ctx context.Context) (string, error)
	// Location describes where the collection lives, for logs.
	Location() string
}

// FileBackend stores the collection as an indented JSON file
type FileBackend struct {
	path string
}

// NewFileBackend creates a JSON file backend, creating the parent directory
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("profile storage path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile storage directory: %w", err)
	}
	return &FileBackend{path: path}, nil
}

// Location returns the JSON file path
func (b *FileBackend) Location() string {
	return b.path
}

// Load reads and decodes the JSON document
func (b *FileBackend) Load(ctx context.Context) (*Collection, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errNoCollection
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	return decodeCollection(data)
}

// Save writes to a temporary file in the same directory and renames it into place
func (b *FileBackend) Save(ctx context.Context, coll *Collection) error {
	data, err := json.MarshalIndent(coll, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary profile file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync profiles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close profile file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("failed to replace profile file: %w", err)
	}
	return nil
}

// Quarantine renames the current file to <path>.corrupt-<unix>
func (b *FileBackend) Quarantine(ctx context.Context) (string, error) {
	target := fmt.Sprintf("%s.corrupt-%d", b.path, time.Now().Unix())
	if err := os.Rename(b.path, target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to move profile file aside: %w", err)
	}
	return target, nil
}

func decodeCollection(data []byte) (*Collection, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var coll Collection
	if err := dec.Decode(&coll); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	if err := coll.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	return &coll, nil
}
