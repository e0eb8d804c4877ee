// Package sanitize composes profiles, extraction, prompt building and the
// model call into one pipeline shared by every front-end.
package sanitize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/raaihank/doc-sanitizer/internal/cache"
	"github.com/raaihank/doc-sanitizer/internal/extract"
	"github.com/raaihank/doc-sanitizer/internal/filestore"
	"github.com/raaihank/doc-sanitizer/internal/llm"
	"github.com/raaihank/doc-sanitizer/internal/logger"
	"github.com/raaihank/doc-sanitizer/internal/profile"
	"github.com/raaihank/doc-sanitizer/internal/prompt"
	"go.uber.org/zap"
)

// Outcome labels passed to the Recorder
const (
	OutcomeOK     = "ok"
	OutcomeCached = "cached"
	OutcomeError  = "error"
)

// Recorder receives one observation per run; *metrics.Metrics satisfies it
type Recorder interface {
	ObserveSanitize(outcome string, d time.Duration)
}

// Result is a finished sanitization
type Result struct {
	// Document is the YAML frontmatter followed by the model completion
	Document    string `json:"document"`
	SourceType  string `json:"source_type"`
	Model       string `json:"model"`
	ProfileName string `json:"profile"`
	Cached      bool   `json:"cached"`
}

// Report describes a run for observers, successful or not
type Report struct {
	FileID     string
	Filename   string
	Profile    string
	Model      string
	SourceType string
	Cached     bool
	Err        error
	Duration   time.Duration
}

// Deps holds the collaborators of an App. Cache and Metrics are optional.
type Deps struct {
	Profiles   *profile.Manager
	Files      *filestore.Store
	Extractors *extract.Registry
	Generator  llm.Generator
	Cache      cache.ResultCache
	Metrics    Recorder
	Logger     *logger.Logger

	Model   string
	Options llm.Options
}

// App is built once per process and passed to the HTTP, tool and CLI front-ends
type App struct {
	profiles   *profile.Manager
	files      *filestore.Store
	extractors *extract.Registry
	generator  llm.Generator
	cache      cache.ResultCache
	metrics    Recorder
	logger     *logger.Logger

	model   string
	options llm.Options
	now     func() time.Time

	mu        sync.RWMutex
	observers []func(Report)
}

// New validates deps and builds an App
func New(deps Deps) (*App, error) {
	if deps.Profiles == nil {
		return nil, errors.New("profile manager is required")
	}
	if deps.Extractors == nil {
		return nil, errors.New("extractor registry is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if deps.Model == "" {
		return nil, errors.New("model is required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &App{
		profiles:   deps.Profiles,
		files:      deps.Files,
		extractors: deps.Extractors,
		generator:  deps.Generator,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		logger:     log.WithComponent("sanitize"),
		model:      deps.Model,
		options:    deps.Options,
		now:        time.Now,
	}, nil
}

// Profiles returns the profile manager
func (a *App) Profiles() *profile.Manager { return a.profiles }

// Files returns the file store, nil for CLI-only apps
func (a *App) Files() *filestore.Store { return a.files }

// Extractors returns the extractor registry
func (a *App) Extractors() *extract.Registry { return a.extractors }

// Model returns the model name sent upstream
func (a *App) Model() string { return a.model }

// OnReport registers an observer called after every run
func (a *App) OnReport(fn func(Report)) {
	a.mu.Lock()
	a.observers = append(a.observers, fn)
	a.mu.Unlock()
}

// ResolveProfile returns the referenced profile, or the default one for a zero ref
func (a *App) ResolveProfile(ref profile.Ref) (*profile.Profile, error) {
	if ref.IsZero() {
		return a.profiles.Default()
	}
	return a.profiles.Get(ref)
}

// SanitizeBytes runs the pipeline over content received directly
func (a *App) SanitizeBytes(ctx context.Context, content []byte, filename string, ref profile.Ref) (*Result, error) {
	start := a.now()
	prof, err := a.ResolveProfile(ref)
	if err != nil {
		a.finish(Report{Filename: filename, Model: a.model, Err: err}, start)
		return nil, err
	}

	res, err := a.run(ctx, prof, content, filename)
	a.finish(reportFor(res, "", filename, prof, a.model, err), start)
	return res, err
}

// SanitizeFile runs the pipeline over a stored upload and deletes it on success.
// A failed run leaves the file in place for a retry until it expires.
func (a *App) SanitizeFile(ctx context.Context, fileID string, ref profile.Ref) (*Result, error) {
	start := a.now()
	if a.files == nil {
		return nil, errors.New("file store is not configured")
	}

	prof, err := a.ResolveProfile(ref)
	if err != nil {
		a.finish(Report{FileID: fileID, Model: a.model, Err: err}, start)
		return nil, err
	}

	stored, ok := a.files.Get(fileID)
	if !ok {
		err := fmt.Errorf("%w: %s", filestore.ErrNotFound, fileID)
		a.finish(Report{FileID: fileID, Profile: prof.Name, Model: a.model, Err: err}, start)
		return nil, err
	}
	content, err := a.files.Read(fileID)
	if err != nil {
		a.finish(Report{FileID: fileID, Filename: stored.OriginalFilename, Profile: prof.Name, Model: a.model, Err: err}, start)
		return nil, err
	}

	res, err := a.run(ctx, prof, content, stored.OriginalFilename)
	if err == nil {
		a.files.Delete(fileID)
		a.logger.Info("Processed and removed uploaded file", zap.String("file_id", fileID))
	}
	a.finish(reportFor(res, fileID, stored.OriginalFilename, prof, a.model, err), start)
	return res, err
}

func (a *App) run(ctx context.Context, prof *profile.Profile, content []byte, filename string) (*Result, error) {
	doc, err := a.extractors.Extract(content, filename)
	if err != nil {
		return nil, err
	}

	key, err := a.cacheKey(doc, prof)
	if err != nil {
		return nil, err
	}

	completion, cached := a.lookup(ctx, key, doc.SourceType)
	if !cached {
		a.logger.Info("Calling model",
			zap.String("model", a.model),
			zap.String("profile", prof.Name),
			zap.String("source_type", doc.SourceType),
			zap.Int("content_chars", len(doc.Content)),
		)
		completion, err = a.generator.Generate(ctx, a.model, prompt.Build(doc.Content, prof.Config), a.options)
		if err != nil {
			return nil, err
		}
		a.store(ctx, key, completion, doc.SourceType)
	}

	header, err := prompt.Frontmatter(doc.SourceType, a.model, prof.Name, a.now())
	if err != nil {
		return nil, err
	}

	return &Result{
		Document:    header + completion,
		SourceType:  doc.SourceType,
		Model:       a.model,
		ProfileName: prof.Name,
		Cached:      cached,
	}, nil
}

// cacheKey hashes the extracted text rather than the raw upload, so the
// extractor choice is part of the key
func (a *App) cacheKey(doc *extract.Document, prof *profile.Profile) (string, error) {
	if a.cache == nil {
		return "", nil
	}
	policyJSON, err := json.Marshal(prof.Config)
	if err != nil {
		return "", fmt.Errorf("failed to encode profile config: %w", err)
	}
	return cache.Key([]byte(doc.SourceType+"\x00"+doc.Content), policyJSON, a.model), nil
}

func (a *App) lookup(ctx context.Context, key, sourceType string) (string, bool) {
	if a.cache == nil {
		return "", false
	}
	entry, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Warn("Result cache lookup failed", zap.Error(err))
		return "", false
	}
	if entry == nil || entry.SourceType != sourceType || entry.Model != a.model {
		return "", false
	}
	a.logger.Debug("Result cache hit", zap.String("key", key))
	return entry.Completion, true
}

func (a *App) store(ctx context.Context, key, completion, sourceType string) {
	if a.cache == nil {
		return
	}
	err := a.cache.Set(ctx, key, &cache.Entry{
		Completion: completion,
		SourceType: sourceType,
		Model:      a.model,
		CachedAt:   a.now(),
	})
	if err != nil {
		a.logger.Warn("Result cache store failed", zap.Error(err))
	}
}

func reportFor(res *Result, fileID, filename string, prof *profile.Profile, model string, err error) Report {
	r := Report{FileID: fileID, Filename: filename, Profile: prof.Name, Model: model, Err: err}
	if res != nil {
		r.SourceType = res.SourceType
		r.Cached = res.Cached
	}
	return r
}

func (a *App) finish(r Report, start time.Time) {
	r.Duration = a.now().Sub(start)

	outcome := OutcomeOK
	switch {
	case r.Err != nil:
		outcome = OutcomeError
		a.logger.Warn("Sanitization failed",
			zap.String("file_id", r.FileID),
			zap.String("filename", r.Filename),
			zap.String("profile", r.Profile),
			zap.Error(r.Err),
		)
	case r.Cached:
		outcome = OutcomeCached
	}
	if r.Err == nil {
		a.logger.Info("Sanitization completed",
			zap.String("file_id", r.FileID),
			zap.String("profile", r.Profile),
			zap.String("source_type", r.SourceType),
			zap.Bool("cached", r.Cached),
			zap.Duration("duration", r.Duration),
		)
	}
	if a.metrics != nil {
		a.metrics.ObserveSanitize(outcome, r.Duration)
	}

	a.mu.RLock()
	observers := append([]func(Report){}, a.observers...)
	a.mu.RUnlock()
	for _, fn := range observers {
		fn(r)
	}
}
