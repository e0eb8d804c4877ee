package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/raaihank/doc-sanitizer/internal/policy"
)

const maxNameLength = 50

// ValidateName checks a profile name against the naming rules.
// It never panics; the reason is empty when the name is valid.
func ValidateName(name string) (bool, string) {
	if name == "" {
		return false, "Profile name cannot be empty"
	}
	if len(name) > maxNameLength {
		return false, fmt.Sprintf("Profile name must be %d characters or less", maxNameLength)
	}
	for _, r := range name {
		if !isNameRune(r) {
			return false, "Profile name must contain only letters, numbers, underscores, and hyphens"
		}
	}
	return true, ""
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

// SetAction assigns action to category after checking the legal-action table.
// ModifiedAt is left untouched so callers can bump it once per batch.
func (p *Profile) SetAction(c policy.Category, a policy.Action) error {
	if p.Config == nil {
		p.Config = policy.DefaultConfiguration()
	}
	return p.Config.Set(c, a)
}

func newDefaultProfile(now time.Time) Profile {
	return Profile{
		ID:         1,
		Name:       DefaultName,
		CreatedAt:  now,
		ModifiedAt: now,
		Config:     policy.DefaultConfiguration(),
	}
}

func bootstrapCollection(now time.Time) *Collection {
	return &Collection{
		Profiles: []Profile{newDefaultProfile(now)},
		NextID:   2,
	}
}

// validate checks the invariants a loaded collection must satisfy
func (c *Collection) validate() error {
	seenIDs := make(map[int]bool, len(c.Profiles))
	seenNames := make(map[string]bool, len(c.Profiles))
	defaults := 0

	for _, p := range c.Profiles {
		if p.ID <= 0 {
			return fmt.Errorf("profile %q has non-positive id %d", p.Name, p.ID)
		}
		if seenIDs[p.ID] {
			return fmt.Errorf("duplicate profile id %d", p.ID)
		}
		seenIDs[p.ID] = true

		if ok, reason := ValidateName(p.Name); !ok {
			return fmt.Errorf("profile %d: %s", p.ID, reason)
		}
		key := strings.ToLower(p.Name)
		if seenNames[key] {
			return fmt.Errorf("duplicate profile name %q", p.Name)
		}
		seenNames[key] = true

		if p.IsDefault() {
			defaults++
		}
		if p.ID >= c.NextID {
			return fmt.Errorf("next_id %d is not greater than profile id %d", c.NextID, p.ID)
		}
		if err := p.Config.Validate(); err != nil {
			return fmt.Errorf("profile %q: %w", p.Name, err)
		}
	}

	if defaults != 1 {
		return fmt.Errorf("expected exactly one %q profile, found %d", DefaultName, defaults)
	}
	return nil
}
