package profile

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/raaihank/doc-sanitizer/internal/policy"
)

// DefaultName is the name of the profile that always exists
const DefaultName = "default"

var (
	// ErrInvalidName is returned when a profile name breaks the naming rules
	ErrInvalidName = errors.New("invalid profile name")
	// ErrDuplicateName is returned when a name collides case-insensitively
	ErrDuplicateName = errors.New("profile already exists")
	// ErrNotFound is returned when no profile matches an identifier
	ErrNotFound = errors.New("profile not found")
	// ErrIllegalAction is returned when an action is not legal for a category
	ErrIllegalAction = policy.ErrIllegalAction
	// ErrProtectedProfile is returned when deleting the default profile
	ErrProtectedProfile = errors.New("the default profile cannot be deleted")
	// ErrCorruptStore is returned when persisted profiles exist but cannot be read
	ErrCorruptStore = errors.New("profile store is unreadable")

	errNoCollection = errors.New("no persisted profile collection")
)

// Profile is a named sanitization policy
type Profile struct {
	ID         int                  `json:"id"`
	Name       string               `json:"name"`
	CreatedAt  time.Time            `json:"created_at"`
	ModifiedAt time.Time            `json:"modified_at"`
	Config     policy.Configuration `json:"config"`
}

// Collection is the persisted set of profiles
type Collection struct {
	Profiles []Profile `json:"profiles"`
	NextID   int       `json:"next_id"`
}

// Ref identifies a profile either by id or by name
type Ref struct {
	id     int
	name   string
	byID   bool
	isUsed bool
}

// ByID references a profile by its numeric id
func ByID(id int) Ref {
	return Ref{id: id, byID: true, isUsed: true}
}

// ByName references a profile by name (case-insensitive)
func ByName(name string) Ref {
	return Ref{name: name, isUsed: true}
}

// ParseRef treats s as an id when it parses as an integer, otherwise as a
// name. A blank s yields the zero Ref.
func ParseRef(s string) Ref {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}
	}
	if id, err := strconv.Atoi(s); err == nil {
		return ByID(id)
	}
	return ByName(s)
}

// IsZero reports whether the reference was left unset
func (r Ref) IsZero() bool {
	return !r.isUsed
}

func (r Ref) String() string {
	if r.byID {
		return "#" + strconv.Itoa(r.id)
	}
	return r.name
}

func (r Ref) matches(p *Profile) bool {
	if r.byID {
		return p.ID == r.id
	}
	return strings.EqualFold(p.Name, r.name)
}

// IsDefault reports whether the profile is the protected default profile
func (p *Profile) IsDefault() bool {
	return strings.EqualFold(p.Name, DefaultName)
}

// Clone returns a deep copy of the profile
func (p Profile) Clone() Profile {
	p.Config = p.Config.Clone()
	return p
}

func (c *Collection) clone() *Collection {
	out := &Collection{
		Profiles: make([]Profile, len(c.Profiles)),
		NextID:   c.NextID,
	}
	for i, p := range c.Profiles {
		out.Profiles[i] = p.Clone()
	}
	return out
}

func (c *Collection) find(ref Ref) (int, bool) {
	for i := range c.Profiles {
		if ref.matches(&c.Profiles[i]) {
			return i, true
		}
	}
	return -1, false
}
