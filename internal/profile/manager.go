// Package profile manages named PII sanitization profiles: validation,
// persistence of the whole collection, and lookups by id or name.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/raaihank/doc-sanitizer/internal/logger"
	"github.com/raaihank/doc-sanitizer/internal/policy"
	"go.uber.org/zap"
)

const backendTimeout = 10 * time.Second

// Manager is the public API over the profile collection.
// One mutex covers load, validation, mutation and persistence.
type Manager struct {
	backend Backend
	logger  *logger.Logger
	now     func() time.Time

	mu   sync.Mutex
	coll *Collection
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager opens the collection, bootstrapping the default profile when
// nothing is persisted yet. Unreadable persisted state yields ErrCorruptStore.
func NewManager(backend Backend, log *logger.Logger, opts ...Option) (*Manager, error) {
	m := &Manager{
		backend: backend,
		logger:  log,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.load(); err != nil {
		return nil, err
	}

	log.Info("Profile manager initialized",
		zap.String("location", backend.Location()),
		zap.Int("profiles", len(m.coll.Profiles)),
	)
	return m, nil
}

// Reset moves unreadable persisted state aside and bootstraps a fresh collection.
// It is the explicit operator decision for ErrCorruptStore.
func Reset(backend Backend, log *logger.Logger, opts ...Option) (*Manager, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
	defer cancel()

	moved, err := backend.Quarantine(ctx)
	if err != nil {
		return nil, "", err
	}
	if moved != "" {
		log.Warn("Profile collection moved aside", zap.String("moved_to", moved))
	}

	m, err := NewManager(backend, log, opts...)
	return m, moved, err
}

// load is read-through: the cached collection is used when present
func (m *Manager) load() (*Collection, error) {
	if m.coll != nil {
		return m.coll, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
	defer cancel()

	coll, err := m.backend.Load(ctx)
	switch {
	case errors.Is(err, errNoCollection):
		coll = bootstrapCollection(m.now())
		if err := m.backend.Save(ctx, coll); err != nil {
			return nil, fmt.Errorf("failed to persist default profile: %w", err)
		}
		m.logger.Info("Profile collection bootstrapped", zap.String("location", m.backend.Location()))
	case err != nil:
		m.logger.Error("Profile collection unreadable", zap.String("location", m.backend.Location()), zap.Error(err))
		return nil, err
	}

	m.coll = coll
	return coll, nil
}

// mutate applies fn to a copy of the collection and persists it. The cache is
// only replaced once the backend accepted the new collection.
func (m *Manager) mutate(fn func(*Collection) error) error {
	current, err := m.load()
	if err != nil {
		return err
	}

	next := current.clone()
	if err := fn(next); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
	defer cancel()
	if err := m.backend.Save(ctx, next); err != nil {
		m.logger.Error("Failed to persist profiles", zap.Error(err))
		return err
	}

	m.coll = next
	return nil
}

// List returns every profile in collection order
func (m *Manager) List() ([]Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, err := m.load()
	if err != nil {
		return nil, err
	}
	out := make([]Profile, len(coll.Profiles))
	for i, p := range coll.Profiles {
		out[i] = p.Clone()
	}
	return out, nil
}

// Get resolves a profile by id or case-insensitive name
func (m *Manager) Get(ref Ref) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, err := m.load()
	if err != nil {
		return nil, err
	}
	i, ok := coll.find(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	p := coll.Profiles[i].Clone()
	return &p, nil
}

// Default returns the default profile
func (m *Manager) Default() (*Profile, error) {
	return m.Get(ByName(DefaultName))
}

// Create adds a profile whose configuration is copied from source (default when zero)
func (m *Manager) Create(name string, source Ref) (*Profile, error) {
	if ok, reason := ValidateName(name); !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidName, reason)
	}
	if source.IsZero() {
		source = ByName(DefaultName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var created Profile
	err := m.mutate(func(coll *Collection) error {
		if _, exists := coll.find(ByName(name)); exists {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		src, ok := coll.find(source)
		if !ok {
			return fmt.Errorf("%w: source %s", ErrNotFound, source)
		}

		now := m.now()
		created = Profile{
			ID:         coll.NextID,
			Name:       name,
			CreatedAt:  now,
			ModifiedAt: now,
			Config:     coll.Profiles[src].Config.Clone(),
		}
		coll.Profiles = append(coll.Profiles, created)
		coll.NextID++
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Profile created",
		zap.Int("profile_id", created.ID),
		zap.String("profile", created.Name),
		zap.String("source", source.String()),
	)
	out := created.Clone()
	return &out, nil
}

// Copy creates newName with the configuration of source
func (m *Manager) Copy(source Ref, newName string) (*Profile, error) {
	return m.Create(newName, source)
}

// Update applies every change or none of them
func (m *Manager) Update(ref Ref, changes map[policy.Category]policy.Action) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var updated Profile
	err := m.mutate(func(coll *Collection) error {
		i, ok := coll.find(ref)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}

		for c, a := range changes {
			if err := policy.CheckLegal(c, a); err != nil {
				return err
			}
		}

		p := &coll.Profiles[i]
		for c, a := range changes {
			if err := p.SetAction(c, a); err != nil {
				return err
			}
		}
		p.ModifiedAt = m.now()
		updated = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Profile updated",
		zap.Int("profile_id", updated.ID),
		zap.String("profile", updated.Name),
		zap.Int("changes", len(changes)),
	)
	return &updated, nil
}

// Delete removes a profile; the default profile is protected
func (m *Manager) Delete(ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed Profile
	err := m.mutate(func(coll *Collection) error {
		i, ok := coll.find(ref)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		if coll.Profiles[i].IsDefault() {
			return ErrProtectedProfile
		}
		removed = coll.Profiles[i]
		coll.Profiles = append(coll.Profiles[:i], coll.Profiles[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("Profile deleted",
		zap.Int("profile_id", removed.ID),
		zap.String("profile", removed.Name),
	)
	return nil
}

// IsValidationError reports whether err is caused by caller input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrDuplicateName) ||
		errors.Is(err, ErrIllegalAction) ||
		errors.Is(err, policy.ErrUnknownCategory) ||
		errors.Is(err, policy.ErrUnknownAction)
}

// ParseChanges converts "category=action" pairs into a change batch
func ParseChanges(pairs []string) (map[policy.Category]policy.Action, error) {
	changes := make(map[policy.Category]policy.Action, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid change %q, expected category=action", pair)
		}
		c, err := policy.ParseCategory(key)
		if err != nil {
			return nil, err
		}
		a, err := policy.ParseAction(value)
		if err != nil {
			return nil, err
		}
		changes[c] = a
	}
	return changes, nil
}
