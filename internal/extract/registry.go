// Package extract turns uploaded documents into markdown text for the prompt.
// Parsing is best effort: the model does the actual PII work.
package extract

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry dispatches to an Extractor by file extension
type Registry struct {
	extractors map[string]Extractor
	maxSize    int64
}

// NewRegistry builds a registry over the given extractors.
// A later extractor wins when two claim the same extension.
func NewRegistry(maxSize int64, extractors ...Extractor) *Registry {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	r := &Registry{extractors: make(map[string]Extractor), maxSize: maxSize}
	for _, e := range extractors {
		for _, ext := range e.Extensions() {
			r.extractors[strings.ToLower(ext)] = e
		}
	}
	return r
}

// Default returns a registry with every built-in extractor
func Default(maxSize int64) *Registry {
	return NewRegistry(maxSize,
		PlainText{},
		CSV{},
		Email{},
		Word{},
		Parquet{},
	)
}

// MaxSize returns the input size limit in bytes
func (r *Registry) MaxSize() int64 {
	return r.maxSize
}

// Extensions returns the supported extensions, sorted
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether filename has a registered extension
func (r *Registry) Supports(filename string) bool {
	_, ok := r.extractors[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract checks the size limit and dispatches on the lowercase extension
func (r *Registry) Extract(content []byte, filename string) (*Document, error) {
	if int64(len(content)) > r.maxSize {
		return nil, &Error{
			Kind:     TooLarge,
			Filename: filename,
			Message: fmt.Sprintf("file exceeds maximum size of %dMB, consider splitting the document into smaller parts",
				r.maxSize/(1024*1024)),
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	e, ok := r.extractors[ext]
	if !ok {
		return nil, &Error{
			Kind:     Unsupported,
			Filename: filename,
			Message:  fmt.Sprintf("unsupported file type: %q, supported types: %s", ext, strings.Join(r.Extensions(), ", ")),
		}
	}

	doc, err := e.Extract(content, filename)
	if err != nil {
		return nil, err
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]interface{}{}
	}
	doc.Metadata["filename"] = filename
	return doc, nil
}

// ExtractBase64 decodes standard base64 content before extracting
func (r *Registry) ExtractBase64(encoded, filename string) (*Document, error) {
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, corrupt(filename, "failed to decode base64 content", err)
	}
	return r.Extract(content, filename)
}

// ExtractFile reads a document from disk
func (r *Registry) ExtractFile(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s: %w", path, err)
	}
	if info.Size() > r.maxSize {
		return nil, &Error{
			Kind:     TooLarge,
			Filename: filepath.Base(path),
			Message:  fmt.Sprintf("file exceeds maximum size of %dMB", r.maxSize/(1024*1024)),
		}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return r.Extract(content, filepath.Base(path))
}
