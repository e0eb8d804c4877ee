// Package tools exposes profile lookup and document sanitization as named
// tools over HTTP and a line-oriented stdio transport. Tool failures are
// returned as text results starting with "Error:".
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raaihank/doc-sanitizer/internal/extract"
	"github.com/raaihank/doc-sanitizer/internal/filestore"
	"github.com/raaihank/doc-sanitizer/internal/llm"
	"github.com/raaihank/doc-sanitizer/internal/logger"
	"github.com/raaihank/doc-sanitizer/internal/profile"
	"github.com/raaihank/doc-sanitizer/internal/sanitize"
	"go.uber.org/zap"
)

// Tool names
const (
	GetProfile       = "get_profile"
	ListProfiles     = "list_profiles"
	SanitizeDocument = "sanitize_document"
)

// Tool describes one invocable tool
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Content is one block of a tool result
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is what every tool call returns, failures included
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Text returns the concatenated text content
func (r Result) Text() string {
	parts := make([]string, len(r.Content))
	for i, c := range r.Content {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n")
}

// Recorder receives one observation per call; *metrics.Metrics satisfies it
type Recorder interface {
	ObserveToolCall(tool string, failed bool)
}

// Options configures a Registry
type Options struct {
	// BaseURL of the upload API, used in upload instructions
	BaseURL string
	Metrics Recorder
	Logger  *logger.Logger
}

// Registry dispatches tool calls to the sanitize App
type Registry struct {
	app     *sanitize.App
	baseURL string
	metrics Recorder
	logger  *logger.Logger
}

type profileArgs struct {
	Profile   *string `json:"profile"`
	ProfileID *int    `json:"profile_id"`
}

func (a profileArgs) ref() profile.Ref {
	switch {
	case a.ProfileID != nil:
		return profile.ByID(*a.ProfileID)
	case a.Profile != nil:
		return profile.ByName(*a.Profile)
	default:
		return profile.Ref{}
	}
}

type sanitizeArgs struct {
	profileArgs
	FileID string `json:"file_id"`
}

// New creates a registry over app
func New(app *sanitize.App, opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Registry{
		app:     app,
		baseURL: baseURL,
		metrics: opts.Metrics,
		logger:  log.WithComponent("tools"),
	}
}

// List returns the tool catalogue
func (r *Registry) List() []Tool {
	profileProps := map[string]interface{}{
		"profile": map[string]interface{}{
			"type":        "string",
			"description": "Profile name (optional, defaults to 'default')",
		},
		"profile_id": map[string]interface{}{
			"type":        "integer",
			"description": "Profile ID (alternative to name)",
		},
	}

	sanitizeProps := map[string]interface{}{
		"file_id": map[string]interface{}{
			"type":        "string",
			"description": "UUID of the uploaded file (from HTTP upload endpoint)",
		},
	}
	for k, v := range profileProps {
		sanitizeProps[k] = v
	}

	return []Tool{
		{
			Name:        GetProfile,
			Description: "Get details of a sanitization profile. Shows how each PII type will be handled.",
			InputSchema: map[string]interface{}{"type": "object", "properties": profileProps},
		},
		{
			Name:        ListProfiles,
			Description: "List all available sanitization profiles with their PII handling settings.",
			InputSchema: map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		},
		{
			Name: SanitizeDocument,
			Description: fmt.Sprintf(`Sanitize a document by removing or transforming PII according to a profile.

Before calling this tool, upload the file via HTTP:
  curl -F "file=@document.docx" %s/upload

The upload returns a file_id to use with this tool. Files are deleted automatically after %s.

Returns: Sanitized document as Markdown text with YAML frontmatter.`, r.baseURL, r.ttlText()),
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": sanitizeProps,
				"required":   []string{"file_id"},
			},
		},
	}
}

// Call runs one tool. It never returns a Go error: every failure becomes an
// "Error:" text result.
func (r *Registry) Call(ctx context.Context, name string, arguments json.RawMessage) (res Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Tool panicked", zap.String("tool", name), zap.Any("panic", p))
			res = errorResult("internal error in tool %s", name)
		}
		if r.metrics != nil {
			r.metrics.ObserveToolCall(name, res.IsError)
		}
		r.logger.Debug("Tool call finished",
			zap.String("tool", name),
			zap.Bool("error", res.IsError),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	switch name {
	case GetProfile:
		var args profileArgs
		if err := decodeArgs(arguments, &args); err != nil {
			return errorResult("%v", err)
		}
		return r.getProfile(args)
	case ListProfiles:
		return r.listProfiles()
	case SanitizeDocument:
		var args sanitizeArgs
		if err := decodeArgs(arguments, &args); err != nil {
			return errorResult("%v", err)
		}
		return r.sanitizeDocument(ctx, args)
	default:
		return errorResult("unknown tool: %s", name)
	}
}

func (r *Registry) getProfile(args profileArgs) Result {
	p, err := r.app.ResolveProfile(args.ref())
	if err != nil {
		return errorResult("%v", err)
	}

	configJSON, err := json.MarshalIndent(p.Config, "", "  ")
	if err != nil {
		return errorResult("failed to encode profile config: %v", err)
	}

	var b strings.Builder
	b.WriteString(profile.FormatDetail(p))
	b.WriteString("\n## JSON Configuration\n\n```json\n")
	b.Write(configJSON)
	b.WriteString("\n```\n")
	return textResult(b.String())
}

func (r *Registry) listProfiles() Result {
	profiles, err := r.app.Profiles().List()
	if err != nil {
		return errorResult("%v", err)
	}
	return textResult("## Available Sanitization Profiles\n\n" +
		profile.FormatTable(profiles) +
		"\nUse `get_profile` with a profile name or ID to see detailed settings.\n")
}

func (r *Registry) sanitizeDocument(ctx context.Context, args sanitizeArgs) Result {
	if strings.TrimSpace(args.FileID) == "" {
		return errorResult(`file_id is required.

To sanitize a document:
1. First upload the file: curl -F "file=@document.docx" %s/upload
2. Use the returned file_id with this tool`, r.baseURL)
	}

	res, err := r.app.SanitizeFile(ctx, args.FileID, args.ref())
	switch {
	case err == nil:
		return textResult(res.Document)
	case errors.Is(err, filestore.ErrNotFound):
		return errorResult("File not found: %s. Files are deleted after %s. Please upload again.", args.FileID, r.ttlText())
	case errors.Is(err, extract.ErrExtraction):
		return errorResult("could not extract document: %v", err)
	case errors.Is(err, llm.ErrModel):
		return errorResult("model call failed: %v", err)
	default:
		return errorResult("%v", err)
	}
}

func (r *Registry) ttlText() string {
	ttl := filestore.DefaultTTL
	if files := r.app.Files(); files != nil {
		ttl = files.TTL()
	}
	if ttl%time.Minute == 0 {
		n := int(ttl / time.Minute)
		if n == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", n)
	}
	return ttl.String()
}

func decodeArgs(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func textResult(text string) Result {
	return Result{Content: []Content{{Type: "text", Text: text}}}
}

func errorResult(format string, args ...interface{}) Result {
	return Result{
		Content: []Content{{Type: "text", Text: "Error: " + fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
