// Package bootstrap builds the process-wide collaborators from configuration.
// Both binaries use it so the server and the CLI agree on wiring.
package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/raaihank/doc-sanitizer/internal/cache"
	"github.com/raaihank/doc-sanitizer/internal/config"
	"github.com/raaihank/doc-sanitizer/internal/extract"
	"github.com/raaihank/doc-sanitizer/internal/filestore"
	"github.com/raaihank/doc-sanitizer/internal/llm"
	"github.com/raaihank/doc-sanitizer/internal/logger"
	"github.com/raaihank/doc-sanitizer/internal/metrics"
	"github.com/raaihank/doc-sanitizer/internal/profile"
	"github.com/raaihank/doc-sanitizer/internal/sanitize"
	"github.com/raaihank/doc-sanitizer/internal/tools"
	"go.uber.org/zap"
)

// Options selects optional parts of the runtime
type Options struct {
	// Files opens the ephemeral file store; the CLI sanitize path does not need it
	Files bool
	// BaseURL is the upload API address quoted in tool instructions
	BaseURL string
}

// Runtime holds everything a front-end needs
type Runtime struct {
	Config   *config.Config
	Logger   *logger.Logger
	Backend  profile.Backend
	Profiles *profile.Manager
	Files    *filestore.Store
	LLM      *llm.Client
	Cache    cache.ResultCache
	Metrics  *metrics.Metrics
	App      *sanitize.App
	Tools    *tools.Registry
}

// NewLogger builds the logger described by cfg. A nil out means stdout.
func NewLogger(cfg *config.Config, out io.Writer) (*logger.Logger, error) {
	lc := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: out,
	}
	if cfg.Logging.File.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		lc.File = &logger.FileConfig{Enabled: true, Path: cfg.Logging.File.Path}
	}
	return logger.New(lc)
}

// OpenProfiles opens only the profile backend and manager
func OpenProfiles(cfg *config.Config, log *logger.Logger) (profile.Backend, *profile.Manager, error) {
	backend, err := profile.OpenBackend(cfg.Profiles, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	mgr, err := profile.NewManager(backend, log.WithComponent("profiles"))
	if err != nil {
		profile.CloseBackend(backend)
		return nil, nil, err
	}
	return backend, mgr, nil
}

// Build wires the runtime. On error everything opened so far is closed.
func Build(cfg *config.Config, log *logger.Logger, opts Options) (rt *Runtime, err error) {
	rt = &Runtime{Config: cfg, Logger: log, Metrics: metrics.New()}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	rt.Backend, rt.Profiles, err = OpenProfiles(cfg, log)
	if err != nil {
		return rt, err
	}

	if opts.Files {
		rt.Files, err = filestore.New(filestore.Config{
			Dir:             cfg.Files.Dir,
			TTL:             cfg.Files.TTL,
			CleanupInterval: cfg.Files.CleanupInterval,
		}, log)
		if err != nil {
			return rt, err
		}
		rt.Files.OnEvent(rt.Metrics.ObserveFileEvent)
	}

	rt.LLM = llm.New(llm.Config{
		BaseURL: cfg.Upstream.Ollama,
		Model:   cfg.Upstream.Model,
		Timeout: cfg.Upstream.Timeout,
		Options: llm.Options{
			Temperature: cfg.Upstream.Temperature,
			TopP:        cfg.Upstream.TopP,
			NumPredict:  cfg.Upstream.NumPredict,
		},
		RateLimit: cfg.Upstream.RateLimit,
		Burst:     cfg.Upstream.Burst,
	}, log)

	if cfg.Cache.Enabled {
		rt.Cache = openCache(cfg.Cache, log)
	}

	rt.App, err = sanitize.New(sanitize.Deps{
		Profiles:   rt.Profiles,
		Files:      rt.Files,
		Extractors: extract.Default(cfg.Files.MaxSize),
		Generator:  rt.LLM,
		Cache:      rt.Cache,
		Metrics:    rt.Metrics,
		Logger:     log,
		Model:      rt.LLM.Model(),
		Options:    rt.LLM.Options(),
	})
	if err != nil {
		return rt, err
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	rt.Tools = tools.New(rt.App, tools.Options{BaseURL: baseURL, Metrics: rt.Metrics, Logger: log})

	if profiles, err := rt.Profiles.List(); err == nil {
		rt.Metrics.SetProfiles(len(profiles))
	}
	return rt, nil
}

// openCache prefers Redis and falls back to an in-process cache when Redis
// is unreachable; a missing cache never blocks sanitization
func openCache(cfg config.CacheConfig, log *logger.Logger) cache.ResultCache {
	rc, err := cache.NewRedisCache(cache.Config{
		RedisURL:   cfg.RedisURL,
		DefaultTTL: cfg.TTL,
		KeyPrefix:  cfg.KeyPrefix,
	}, log)
	if err == nil {
		return rc
	}
	log.Warn("Redis result cache unavailable, using in-memory cache", zap.Error(err))
	return cache.NewMemoryCache(cfg.TTL)
}

// Close releases the cache and the profile backend
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Cache != nil {
		errs = append(errs, rt.Cache.Close())
	}
	if rt.Backend != nil {
		errs = append(errs, profile.CloseBackend(rt.Backend))
	}
	return errors.Join(errs...)
}
