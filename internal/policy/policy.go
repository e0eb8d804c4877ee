// Package policy defines the closed set of PII categories, the actions that
// can be applied to them and the static table of which actions are legal for
// which category.
package policy

import (
	"encoding/json"
	"fmt"
	"strings"
)

var categories = []Category{
	PersonName,
	Email,
	Phone,
	Company,
	Address,
	Financial,
	IDNumbers,
	DateOfBirth,
}

var actions = []Action{Delete, Invent, KeepPart}

var legalActions = map[Category][]Action{
	PersonName:  {Delete, Invent, KeepPart},
	Email:       {Delete, KeepPart},
	Phone:       {Delete, Invent, KeepPart},
	Company:     {KeepPart, Invent},
	Address:     {Delete, Invent},
	Financial:   {Delete, Invent},
	IDNumbers:   {Delete, Invent},
	DateOfBirth: {Delete, Invent},
}

var defaultActions = map[Category]Action{
	PersonName:  KeepPart,
	Email:       KeepPart,
	Phone:       Delete,
	Company:     KeepPart,
	Address:     Delete,
	Financial:   Delete,
	IDNumbers:   Delete,
	DateOfBirth: Delete,
}

var descriptions = map[Category]map[Action]string{
	PersonName: {
		Delete:   "Remove name completely, replace with [NAME_REMOVED]",
		Invent:   "Replace with consistent synthetic name",
		KeepPart: "Keep first name only, number duplicates (e.g., John 1, John 2)",
	},
	Email: {
		Delete:   "Remove email completely, replace with [EMAIL_REMOVED]",
		KeepPart: "Keep domain only (e.g., [EMAIL_REDACTED]@company.com)",
	},
	Phone: {
		Delete:   "Remove phone completely, replace with [PHONE_REMOVED]",
		Invent:   "Replace with synthetic phone number",
		KeepPart: "Keep country/area code only (e.g., +1 (555) [REDACTED])",
	},
	Company: {
		KeepPart: "Keep company name as-is",
		Invent:   "Replace with consistent synthetic company name",
	},
	Address: {
		Delete: "Remove address completely, replace with [ADDRESS_REMOVED]",
		Invent: "Replace with synthetic address",
	},
	Financial: {
		Delete: "Remove financial data, replace with [FINANCIAL_REMOVED]",
		Invent: "Replace with synthetic financial data",
	},
	IDNumbers: {
		Delete: "Remove ID numbers, replace with [ID_REMOVED]",
		Invent: "Replace with synthetic ID numbers",
	},
	DateOfBirth: {
		Delete: "Remove date of birth, replace with [DOB_REMOVED]",
		Invent: "Replace with synthetic date of birth",
	},
}

// Categories returns the closed category set in display order
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Actions returns the closed action set
func Actions() []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// LegalActions returns the actions allowed for a category
func LegalActions(c Category) []Action {
	legal := legalActions[c]
	out := make([]Action, len(legal))
	copy(out, legal)
	return out
}

// IsLegal reports whether action a may be assigned to category c
func IsLegal(c Category, a Action) bool {
	for _, legal := range legalActions[c] {
		if legal == a {
			return true
		}
	}
	return false
}

// ParseCategory converts a name into a Category
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if _, ok := legalActions[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// ParseAction converts a name into an Action
func ParseAction(s string) (Action, error) {
	a := Action(strings.TrimSpace(s))
	for _, known := range actions {
		if known == a {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Describe returns the built-in description of an action for a category
func Describe(c Category, a Action) string {
	return descriptions[c][a]
}

// Describe returns the override description, falling back to the built-in one
func (cc CategoryConfig) Describe(c Category) string {
	if cc.Description != "" {
		return cc.Description
	}
	return Describe(c, cc.Action)
}

// DefaultConfiguration returns the built-in policy used by the default profile
func DefaultConfiguration() Configuration {
	cfg := make(Configuration, len(categories))
	for _, c := range categories {
		cfg[c] = CategoryConfig{Action: defaultActions[c]}
	}
	return cfg
}

// Clone returns a deep copy of the configuration
func (cfg Configuration) Clone() Configuration {
	out := make(Configuration, len(cfg))
	for c, cc := range cfg {
		out[c] = cc
	}
	return out
}

// Get returns the configuration of a single category
func (cfg Configuration) Get(c Category) CategoryConfig {
	return cfg[c]
}

// Set assigns an action to a category after consulting the legal-action table.
// Any description override is cleared because it described the previous action.
func (cfg Configuration) Set(c Category, a Action) error {
	if err := CheckLegal(c, a); err != nil {
		return err
	}
	cfg[c] = CategoryConfig{Action: a}
	return nil
}

// CheckLegal returns ErrIllegalAction with the legal alternatives when a is not allowed for c
func CheckLegal(c Category, a Action) error {
	if _, ok := legalActions[c]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	if !IsLegal(c, a) {
		return fmt.Errorf("%w: %q is not valid for %s (valid: %s)",
			ErrIllegalAction, a, c, joinActions(legalActions[c]))
	}
	return nil
}

// Validate checks the configuration is total and every action is legal
func (cfg Configuration) Validate() error {
	for c := range cfg {
		if _, ok := legalActions[c]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
		}
	}
	for _, c := range categories {
		cc, ok := cfg[c]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrIncompleteConfiguration, c)
		}
		if _, err := ParseAction(string(cc.Action)); err != nil {
			return fmt.Errorf("%s: %w", c, err)
		}
		if err := CheckLegal(c, cc.Action); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether two configurations assign the same actions and descriptions
func (cfg Configuration) Equal(other Configuration) bool {
	if len(cfg) != len(other) {
		return false
	}
	for c, cc := range cfg {
		if other[c] != cc {
			return false
		}
	}
	return true
}

// UnmarshalJSON decodes a configuration and rejects unknown or illegal values
func (cfg *Configuration) UnmarshalJSON(data []byte) error {
	var raw map[Category]CategoryConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded := Configuration(raw)
	if err := decoded.Validate(); err != nil {
		return err
	}
	*cfg = decoded
	return nil
}

func joinActions(list []Action) string {
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
