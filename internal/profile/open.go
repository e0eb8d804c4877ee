package profile

import (
	"fmt"

	"github.com/raaihank/doc-sanitizer/internal/config"
	"github.com/raaihank/doc-sanitizer/internal/logger"
	"go.uber.org/zap"
)

// OpenBackend builds the persistence backend selected in configuration
func OpenBackend(cfg config.ProfilesConfig, log *logger.Logger) (Backend, error) {
	switch cfg.Backend {
	case "", "file":
		log.Debug("Using file profile backend", zap.String("path", cfg.Path))
		return NewFileBackend(cfg.Path)
	case "postgres":
		log.Info("Connecting to profile database", zap.String("database_url", MaskDatabaseURL(cfg.DatabaseURL)))
		return NewPostgresBackend(PostgresConfig{
			DatabaseURL:     cfg.DatabaseURL,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			Key:             cfg.Key,
		})
	default:
		return nil, fmt.Errorf("unknown profile backend %q", cfg.Backend)
	}
}

// CloseBackend releases backend resources when it holds any
func CloseBackend(b Backend) error {
	if c, ok := b.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
