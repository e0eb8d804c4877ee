package policy

import "errors"

// Category is a class of personally identifiable information
type Category string

const (
	PersonName  Category = "person_name"
	Email       Category = "email"
	Phone       Category = "phone"
	Company     Category = "company"
	Address     Category = "address"
	Financial   Category = "financial"
	IDNumbers   Category = "id_numbers"
	DateOfBirth Category = "date_of_birth"
)

// Action is the transformation applied to a category
type Action string

const (
	Delete   Action = "delete"
	Invent   Action = "invent"
	KeepPart Action = "keep_part"
)

var (
	// ErrUnknownCategory is returned when a category name is not in the closed set
	ErrUnknownCategory = errors.New("unknown PII category")
	// ErrUnknownAction is returned when an action name is not in the closed set
	ErrUnknownAction = errors.New("unknown action")
	// ErrIllegalAction is returned when an action is not allowed for a category
	ErrIllegalAction = errors.New("illegal action for category")
	// ErrIncompleteConfiguration is returned when a configuration misses a category
	ErrIncompleteConfiguration = errors.New("incomplete configuration")
)

// CategoryConfig is the per-category policy unit
type CategoryConfig struct {
	Action      Action `json:"action"`
	Description string `json:"description,omitempty"`
}

// Configuration maps every category to exactly one CategoryConfig
type Configuration map[Category]CategoryConfig
