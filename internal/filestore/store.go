// Package filestore hands uploaded documents from the upload API to the tool
// surface. Files are keyed by UUID and reaped once their TTL elapses.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raaihank/doc-sanitizer/internal/logger"
	"go.uber.org/zap"
)

// Store keeps upload metadata in memory and content on disk.
// The mutex only guards the maps; disk I/O happens outside it.
type Store struct {
	dir      string
	ttl      time.Duration
	interval time.Duration
	logger   *logger.Logger
	now      func() time.Time

	mu         sync.Mutex
	files      map[string]*StoredFile
	tombstones map[string]time.Time
	observers  []func(Event)

	stop    chan struct{}
	done    chan struct{}
	started bool
}

// New creates a store rooted at cfg.Dir, creating the directory
func New(cfg Config, log *logger.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("file store directory is empty")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create file store directory: %w", err)
	}

	return &Store{
		dir:        cfg.Dir,
		ttl:        cfg.TTL,
		interval:   cfg.CleanupInterval,
		logger:     log.WithComponent("filestore"),
		now:        time.Now,
		files:      make(map[string]*StoredFile),
		tombstones: make(map[string]time.Time),
	}, nil
}

// Dir returns the storage directory
func (s *Store) Dir() string {
	return s.dir
}

// TTL returns how long files live
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// OnEvent registers an observer for lifecycle events.
// Observers run synchronously on the goroutine that caused the event.
func (s *Store) OnEvent(fn func(Event)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Store) emit(t EventType, f StoredFile) {
	s.mu.Lock()
	observers := append([]func(Event){}, s.observers...)
	s.mu.Unlock()

	ev := Event{Type: t, File: f, At: s.now()}
	for _, fn := range observers {
		fn(ev)
	}
}

// Save writes content under a fresh UUID, keeping the original extension
func (s *Store) Save(content []byte, originalName string) (*StoredFile, error) {
	id := uuid.NewString()
	name := filepath.Base(originalName)
	path := filepath.Join(s.dir, id+filepath.Ext(name))

	if err := os.WriteFile(path, content, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	f := &StoredFile{
		ID:               id,
		OriginalFilename: name,
		Size:             int64(len(content)),
		CreatedAt:        s.now(),
		Path:             path,
	}

	s.mu.Lock()
	s.files[id] = f
	s.mu.Unlock()

	s.logger.Info("File saved",
		zap.String("file_id", id),
		zap.String("filename", name),
		zap.Int64("size", f.Size),
	)
	s.emit(EventSaved, *f)
	return f.clone(), nil
}

// Get looks the id up in memory first, then reconstructs the record from
// disk. Ids that are not canonical UUIDs never touch the filesystem.
func (s *Store) Get(id string) (*StoredFile, bool) {
	if !validID(id) {
		return nil, false
	}

	s.mu.Lock()
	if f, ok := s.files[id]; ok {
		s.mu.Unlock()
		return f.clone(), true
	}
	if _, dead := s.tombstones[id]; dead {
		s.mu.Unlock()
		return nil, false
	}
	s.mu.Unlock()

	found, err := s.findOnDisk(id)
	if err != nil || found == nil {
		return nil, false
	}
	if s.now().Sub(found.CreatedAt) >= s.ttl {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dead := s.tombstones[id]; dead {
		return nil, false
	}
	if f, ok := s.files[id]; ok {
		return f.clone(), true
	}
	s.files[id] = found

	s.logger.Debug("File record reconstructed from disk", zap.String("file_id", id))
	return found.clone(), true
}

// findOnDisk applies the reconstruction rule: <id>.* first, then bare <id>.
// The oldest modification time stands in for the lost creation time.
func (s *Store) findOnDisk(id string) (*StoredFile, error) {
	candidates, err := filepath.Glob(filepath.Join(s.dir, id+".*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(candidates)
	candidates = append(candidates, filepath.Join(s.dir, id))

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		return &StoredFile{
			ID:               id,
			OriginalFilename: filepath.Base(path),
			Size:             info.Size(),
			CreatedAt:        info.ModTime(),
			Path:             path,
		}, nil
	}
	return nil, nil
}

// Read returns the content of a live file
func (s *Store) Read(id string) ([]byte, error) {
	f, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		s.forget(id)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Delete removes the file and its record. It reports whether anything was
// removed, so repeated calls return false.
func (s *Store) Delete(id string) bool {
	if !validID(id) {
		return false
	}

	s.mu.Lock()
	f, tracked := s.files[id]
	delete(s.files, id)
	s.tombstones[id] = s.now()
	s.mu.Unlock()

	var record StoredFile
	if tracked {
		record = *f
	}

	removed := tracked
	paths, _ := filepath.Glob(filepath.Join(s.dir, id+".*"))
	paths = append(paths, filepath.Join(s.dir, id))
	for _, path := range paths {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = true
			if record.ID == "" {
				record = StoredFile{ID: id, OriginalFilename: filepath.Base(path), Path: path}
			}
		case !errors.Is(err, os.ErrNotExist):
			s.logger.Warn("Failed to remove file", zap.String("file_id", id), zap.Error(err))
		}
	}

	if removed {
		s.logger.Info("File deleted", zap.String("file_id", id))
		s.emit(EventDeleted, record)
	}
	return removed
}

// List returns a snapshot of tracked files ordered by creation time
func (s *Store) List() []StoredFile {
	s.mu.Lock()
	out := make([]StoredFile, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, *f)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Sweep removes expired tracked files and untracked files older than the
// TTL. Failures on single items are logged and skipped.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	var expired []StoredFile
	for id, f := range s.files {
		if now.Sub(f.CreatedAt) >= s.ttl {
			expired = append(expired, *f)
			delete(s.files, id)
			s.tombstones[id] = now
		}
	}
	for id, at := range s.tombstones {
		if now.Sub(at) >= s.ttl {
			delete(s.tombstones, id)
		}
	}
	s.mu.Unlock()

	removed := 0
	for _, f := range expired {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove expired file", zap.String("file_id", f.ID), zap.Error(err))
			continue
		}
		removed++
		s.logger.Info("File expired", zap.String("file_id", f.ID))
		s.emit(EventExpired, f)
	}

	removed += s.sweepOrphans(now)
	return removed
}

func (s *Store) sweepOrphans(now time.Time) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("Failed to scan file store directory", zap.Error(err))
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if !validID(id) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < s.ttl {
			continue
		}

		s.mu.Lock()
		_, tracked := s.files[id]
		if !tracked {
			s.tombstones[id] = now
		}
		s.mu.Unlock()
		if tracked {
			continue
		}

		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("Failed to remove orphaned file", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		removed++
		s.logger.Info("Orphaned file removed", zap.String("file_id", id))
		s.emit(EventOrphanRemoved, StoredFile{
			ID:               id,
			OriginalFilename: name,
			Size:             info.Size(),
			CreatedAt:        info.ModTime(),
			Path:             path,
		})
	}
	return removed
}

// Start launches the background reaper
func (s *Store) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	stop, done := make(chan struct{}), make(chan struct{})
	s.stop, s.done = stop, done
	s.mu.Unlock()

	go s.reapLoop(stop, done)

	s.logger.Info("File reaper started",
		zap.Duration("ttl", s.ttl),
		zap.Duration("interval", s.interval),
	)
}

// reapLoop sweeps until stop closes, then closes done. Both belong to one run.
func (s *Store) reapLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.logger.Debug("Sweep finished", zap.Int("removed", n))
			}
		case <-stop:
			return
		}
	}
}

// Stop signals the reaper and waits for it to exit or for ctx to end
func (s *Store) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	select {
	case <-done:
		s.logger.Info("File reaper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) forget(id string) {
	s.mu.Lock()
	delete(s.files, id)
	s.mu.Unlock()
}

func (f *StoredFile) clone() *StoredFile {
	c := *f
	return &c
}

// validID accepts only the canonical lowercase UUID form so ids can be
// joined into paths safely
func validID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}
