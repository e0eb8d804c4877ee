package extract

import (
	"errors"
	"fmt"
)

// DefaultMaxSize bounds the input accepted by a Registry
const DefaultMaxSize = 10 * 1024 * 1024

// Document is extracted text in markdown form
type Document struct {
	Content    string                 `json:"content"`
	SourceType string                 `json:"source_type"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Extractor converts one family of file formats to text
type Extractor interface {
	// Extensions lists lowercase extensions including the dot
	Extensions() []string
	Extract(content []byte, filename string) (*Document, error)
}

// Kind classifies extraction failures
type Kind string

// Failure kinds
const (
	Unsupported Kind = "unsupported"
	Corrupt     Kind = "corrupt"
	TooLarge    Kind = "too_large"
)

// ErrExtraction matches every *Error with errors.Is
var ErrExtraction = errors.New("extraction failed")

// Error is the structured failure returned by extractors
type Error struct {
	Kind     Kind
	Filename string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrExtraction) match any extraction error
func (e *Error) Is(target error) bool {
	return target == ErrExtraction
}

// IsKind reports whether err is an extraction error of kind k
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func corrupt(filename, message string, err error) *Error {
	return &Error{Kind: Corrupt, Filename: filename, Message: message, Err: err}
}
