package profile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raaihank/doc-sanitizer/internal/logger"
	"github.com/raaihank/doc-sanitizer/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.json")
	backend, err := NewFileBackend(path)
	require.NoError(t, err)
	m, err := NewManager(backend, logger.NewNop())
	require.NoError(t, err)
	return m, path
}

func TestValidateName(t *testing.T) {
	valid := []string{"default", "high_privacy", "my-profile-1", "Test123", "a", strings.Repeat("x", 50)}
	for _, name := range valid {
		ok, reason := ValidateName(name)
		assert.True(t, ok, name)
		assert.Empty(t, reason)
	}

	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{"empty", "", "empty"},
		{"too long", strings.Repeat("a", 51), "50"},
		{"space", "test profile", "letters, numbers, underscores, and hyphens"},
		{"symbol", "test@profile", "letters, numbers, underscores, and hyphens"},
		{"unicode letter", "profilé", "letters, numbers, underscores, and hyphens"},
		{"path traversal", "../etc", "letters, numbers, underscores, and hyphens"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := ValidateName(tt.input)
			assert.False(t, ok)
			assert.Contains(t, reason, tt.reason)
		})
	}
}

func TestBootstrap(t *testing.T) {
	m, path := newTestManager(t)

	profiles, err := m.List()
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, 1, profiles[0].ID)
	assert.Equal(t, DefaultName, profiles[0].Name)
	assert.True(t, profiles[0].Config.Equal(policy.DefaultConfiguration()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var coll Collection
	require.NoError(t, json.Unmarshal(data, &coll))
	assert.Equal(t, 2, coll.NextID)
}

func TestCreate(t *testing.T) {
	t.Run("copies default on a fresh store", func(t *testing.T) {
		m, _ := newTestManager(t)

		p, err := m.Create("High_Privacy-1", Ref{})
		require.NoError(t, err)
		assert.Equal(t, 2, p.ID)

		def, err := m.Default()
		require.NoError(t, err)
		assert.True(t, p.Config.Equal(def.Config))
	})

	t.Run("rejects invalid names", func(t *testing.T) {
		m, _ := newTestManager(t)
		_, err := m.Create("bad name", Ref{})
		assert.True(t, errors.Is(err, ErrInvalidName))
	})

	t.Run("rejects case-insensitive duplicates", func(t *testing.T) {
		m, _ := newTestManager(t)
		_, err := m.Create("Strict", Ref{})
		require.NoError(t, err)

		_, err = m.Create("strict", Ref{})
		assert.True(t, errors.Is(err, ErrDuplicateName))

		_, err = m.Create("DEFAULT", Ref{})
		assert.True(t, errors.Is(err, ErrDuplicateName))
	})

	t.Run("unknown source", func(t *testing.T) {
		m, _ := newTestManager(t)
		_, err := m.Create("copy", ByName("missing"))
		assert.True(t, errors.Is(err, ErrNotFound))

		profiles, _ := m.List()
		assert.Len(t, profiles, 1)
	})

	t.Run("deep copies the source configuration", func(t *testing.T) {
		m, _ := newTestManager(t)
		source, err := m.Create("source", Ref{})
		require.NoError(t, err)
		_, err = m.Update(ByID(source.ID), map[policy.Category]policy.Action{policy.Company: policy.Invent})
		require.NoError(t, err)

		clone, err := m.Copy(ByName("source"), "clone")
		require.NoError(t, err)
		assert.Equal(t, policy.Invent, clone.Config.Get(policy.Company).Action)

		_, err = m.Update(ByID(clone.ID), map[policy.Category]policy.Action{
			policy.Company:    policy.KeepPart,
			policy.PersonName: policy.Delete,
		})
		require.NoError(t, err)

		after, err := m.Get(ByName("source"))
		require.NoError(t, err)
		assert.Equal(t, policy.Invent, after.Config.Get(policy.Company).Action)
		assert.Equal(t, policy.KeepPart, after.Config.Get(policy.PersonName).Action)
	})

	t.Run("returned profile is detached from the store", func(t *testing.T) {
		m, _ := newTestManager(t)
		p, err := m.Create("detached", Ref{})
		require.NoError(t, err)
		require.NoError(t, p.SetAction(policy.Phone, policy.Invent))

		stored, err := m.Get(ByID(p.ID))
		require.NoError(t, err)
		assert.Equal(t, policy.Delete, stored.Config.Get(policy.Phone).Action)
	})
}

func TestGet(t *testing.T) {
	m, _ := newTestManager(t)
	created, err := m.Create("Finance", Ref{})
	require.NoError(t, err)

	byName, err := m.Get(ByName("FINANCE"))
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	byID, err := m.Get(ByID(created.ID))
	require.NoError(t, err)
	assert.Equal(t, "Finance", byID.Name)

	_, err = m.Get(ByID(99))
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = m.Get(ByName("fin"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParseRef(t *testing.T) {
	m, _ := newTestManager(t)

	p, err := m.Get(ParseRef("1"))
	require.NoError(t, err)
	assert.Equal(t, DefaultName, p.Name)

	p, err = m.Get(ParseRef(" Default "))
	require.NoError(t, err)
	assert.Equal(t, 1, p.ID)

	assert.True(t, Ref{}.IsZero())
	assert.False(t, ParseRef("x").IsZero())
	assert.True(t, ParseRef("  ").IsZero())
}

func TestUpdate(t *testing.T) {
	t.Run("applies changes and bumps modified once", func(t *testing.T) {
		clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		backend, err := NewFileBackend(filepath.Join(t.TempDir(), "profiles.json"))
		require.NoError(t, err)
		m, err := NewManager(backend, logger.NewNop(), WithClock(func() time.Time { return clock }))
		require.NoError(t, err)

		p, err := m.Create("edit", Ref{})
		require.NoError(t, err)

		clock = clock.Add(time.Hour)
		updated, err := m.Update(ByID(p.ID), map[policy.Category]policy.Action{
			policy.PersonName: policy.Delete,
			policy.Email:      policy.Delete,
		})
		require.NoError(t, err)
		assert.Equal(t, policy.Delete, updated.Config.Get(policy.PersonName).Action)
		assert.Equal(t, policy.Delete, updated.Config.Get(policy.Email).Action)
		assert.Equal(t, clock, updated.ModifiedAt)
		assert.Equal(t, p.CreatedAt, updated.CreatedAt)
	})

	t.Run("email invent is illegal and leaves email unchanged", func(t *testing.T) {
		m, _ := newTestManager(t)
		_, err := m.Update(ByName("default"), map[policy.Category]policy.Action{policy.Email: policy.Invent})
		assert.True(t, errors.Is(err, ErrIllegalAction))

		p, err := m.Default()
		require.NoError(t, err)
		assert.Equal(t, policy.KeepPart, p.Config.Get(policy.Email).Action)
	})

	t.Run("batch is all or nothing", func(t *testing.T) {
		m, path := newTestManager(t)
		p, err := m.Create("batch", Ref{})
		require.NoError(t, err)

		before, err := m.Get(ByID(p.ID))
		require.NoError(t, err)
		beforeJSON, err := json.Marshal(before)
		require.NoError(t, err)
		fileBefore, err := os.ReadFile(path)
		require.NoError(t, err)

		_, err = m.Update(ByID(p.ID), map[policy.Category]policy.Action{
			policy.PersonName: policy.Delete,
			policy.Company:    policy.Delete,
		})
		assert.True(t, errors.Is(err, ErrIllegalAction))

		after, err := m.Get(ByID(p.ID))
		require.NoError(t, err)
		afterJSON, err := json.Marshal(after)
		require.NoError(t, err)
		assert.Equal(t, string(beforeJSON), string(afterJSON))

		fileAfter, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, fileBefore, fileAfter)
	})

	t.Run("unknown profile", func(t *testing.T) {
		m, _ := newTestManager(t)
		_, err := m.Update(ByName("ghost"), map[policy.Category]policy.Action{policy.Phone: policy.Invent})
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestDelete(t *testing.T) {
	t.Run("default is protected in any case", func(t *testing.T) {
		m, _ := newTestManager(t)
		_, err := m.Create("other", Ref{})
		require.NoError(t, err)

		for _, name := range []string{"default", "DEFAULT", "Default"} {
			err := m.Delete(ByName(name))
			assert.True(t, errors.Is(err, ErrProtectedProfile), name)
		}
		assert.True(t, errors.Is(m.Delete(ByID(1)), ErrProtectedProfile))
	})

	t.Run("missing profile", func(t *testing.T) {
		m, _ := newTestManager(t)
		assert.True(t, errors.Is(m.Delete(ByName("nope")), ErrNotFound))
	})

	t.Run("ids are never reused", func(t *testing.T) {
		m, _ := newTestManager(t)
		for _, name := range []string{"one", "two", "three"} {
			_, err := m.Create(name, Ref{})
			require.NoError(t, err)
		}
		require.NoError(t, m.Delete(ByName("two")))

		fourth, err := m.Create("four", Ref{})
		require.NoError(t, err)
		assert.Equal(t, 5, fourth.ID)
	})
}

func TestIDsCountFromBootstrap(t *testing.T) {
	m, _ := newTestManager(t)

	// default is the first of three profiles
	second, err := m.Create("second", Ref{})
	require.NoError(t, err)
	third, err := m.Create("third", Ref{})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, []int{second.ID, third.ID})

	require.NoError(t, m.Delete(ByID(second.ID)))
	fourth, err := m.Create("fourth", Ref{})
	require.NoError(t, err)
	assert.Equal(t, 4, fourth.ID)
}

func TestRoundTripPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profiles.json")
	backend, err := NewFileBackend(path)
	require.NoError(t, err)

	first, err := NewManager(backend, logger.NewNop())
	require.NoError(t, err)
	_, err = first.Create("alpha", Ref{})
	require.NoError(t, err)
	_, err = first.Create("beta", ByName("alpha"))
	require.NoError(t, err)
	_, err = first.Update(ByName("beta"), map[policy.Category]policy.Action{
		policy.Address:     policy.Invent,
		policy.DateOfBirth: policy.Invent,
	})
	require.NoError(t, err)
	want, err := first.List()
	require.NoError(t, err)

	second, err := NewManager(backend, logger.NewNop())
	require.NoError(t, err)
	got, err := second.List()
	require.NoError(t, err)

	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.True(t, want[i].CreatedAt.Equal(got[i].CreatedAt))
		assert.True(t, want[i].ModifiedAt.Equal(got[i].ModifiedAt))
		assert.True(t, want[i].Config.Equal(got[i].Config), want[i].Name)
	}

	next, err := second.Create("gamma", Ref{})
	require.NoError(t, err)
	assert.Equal(t, 4, next.ID)
}

func TestCorruptStore(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{not json"},
		{"unknown action", `{"profiles":[{"id":1,"name":"default","config":{"person_name":{"action":"scramble"}}}],"next_id":2}`},
		{"legacy schema", `{"items":[],"counter":1}`},
		{"next id too small", validCollectionJSON(t, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "profiles.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			backend, err := NewFileBackend(path)
			require.NoError(t, err)

			_, err = NewManager(backend, logger.NewNop())
			assert.True(t, errors.Is(err, ErrCorruptStore))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data), "corrupt state must not be overwritten")
		})
	}
}

func TestReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	backend, err := NewFileBackend(path)
	require.NoError(t, err)

	m, moved, err := Reset(backend, logger.NewNop())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(moved, path+".corrupt-"))

	preserved, err := os.ReadFile(moved)
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(preserved))

	profiles, err := m.List()
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

type failingBackend struct {
	*FileBackend
	fail bool
}

func (b *failingBackend) Save(ctx context.Context, coll *Collection) error {
	if b.fail {
		return errors.New("disk full")
	}
	return b.FileBackend.Save(ctx, coll)
}

func TestPersistFailureKeepsCache(t *testing.T) {
	fb, err := NewFileBackend(filepath.Join(t.TempDir(), "profiles.json"))
	require.NoError(t, err)
	backend := &failingBackend{FileBackend: fb}
	m, err := NewManager(backend, logger.NewNop())
	require.NoError(t, err)

	backend.fail = true
	_, err = m.Create("lost", Ref{})
	require.Error(t, err)

	profiles, err := m.List()
	require.NoError(t, err)
	assert.Len(t, profiles, 1)

	backend.fail = false
	p, err := m.Create("kept", Ref{})
	require.NoError(t, err)
	assert.Equal(t, 2, p.ID)
}

func TestParseChanges(t *testing.T) {
	changes, err := ParseChanges([]string{"person_name=delete", "email=keep_part"})
	require.NoError(t, err)
	assert.Equal(t, policy.Delete, changes[policy.PersonName])
	assert.Equal(t, policy.KeepPart, changes[policy.Email])

	_, err = ParseChanges([]string{"person_name"})
	assert.Error(t, err)
	_, err = ParseChanges([]string{"ssn=delete"})
	assert.True(t, errors.Is(err, policy.ErrUnknownCategory))
	_, err = ParseChanges([]string{"email=blur"})
	assert.True(t, errors.Is(err, policy.ErrUnknownAction))
	assert.True(t, IsValidationError(err))
}

func validCollectionJSON(t *testing.T, nextID int) string {
	t.Helper()
	coll := bootstrapCollection(time.Now())
	coll.NextID = nextID
	data, err := json.Marshal(coll)
	require.NoError(t, err)
	return string(data)
}
