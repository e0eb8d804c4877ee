package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const defaultCollectionKey = "default"

// PostgresConfig contains database configuration for the profile backend
type PostgresConfig struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Key             string
}

// PostgresBackend stores the whole collection as one JSONB document row,
// keeping the same whole-collection rewrite contract as the file backend.
type PostgresBackend struct {
	db  *sqlx.DB
	key string
}

// NewPostgresBackend connects to Postgres and ensures the table exists
func NewPostgresBackend(cfg PostgresConfig) (*PostgresBackend, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	backend := NewPostgresBackendWithDB(db, cfg.Key)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := backend.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return backend, nil
}

// NewPostgresBackendWithDB wraps an existing connection
func NewPostgresBackendWithDB(db *sqlx.DB, key string) *PostgresBackend {
	if key == "" {
		key = defaultCollectionKey
	}
	return &PostgresBackend{db: db, key: key}
}

// EnsureSchema creates the collection table when missing
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS profile_collections (
			name       TEXT PRIMARY KEY,
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create profile_collections table: %w", err)
	}
	return nil
}

// Location returns a description of the row holding the collection
func (b *PostgresBackend) Location() string {
	return "postgres:profile_collections/" + b.key
}

// Load reads the collection document
func (b *PostgresBackend) Load(ctx context.Context) (*Collection, error) {
	var document []byte
	err := b.db.GetContext(ctx, &document, `SELECT document FROM profile_collections WHERE name = $1`, b.key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNoCollection
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return decodeCollection(document)
}

// Save upserts the collection document inside a transaction
func (b *PostgresBackend) Save(ctx context.Context, coll *Collection) error {
	document, err := json.Marshal(coll)
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}

	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO profile_collections (name, document, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`
	if _, err := tx.ExecContext(ctx, query, b.key, document); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profiles: %w", err)
	}
	return nil
}

// Quarantine renames the row so a fresh collection can take its key
func (b *PostgresBackend) Quarantine(ctx context.Context) (string, error) {
	target := fmt.Sprintf("%s.corrupt-%d", b.key, time.Now().Unix())
	res, err := b.db.ExecContext(ctx, `UPDATE profile_collections SET name = $2 WHERE name = $1`, b.key, target)
	if err != nil {
		return "", fmt.Errorf("failed to move profile document aside: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to confirm profile document move: %w", err)
	}
	if n == 0 {
		return "", nil
	}
	return "postgres:profile_collections/" + target, nil
}

// Close closes the database connection
func (b *PostgresBackend) Close() error {
	return b.db.Close()
}

// MaskDatabaseURL hides the password in a connection URL for logging
func MaskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at < 0 || scheme < 0 {
		return url
	}
	creds := url[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return url[:scheme+3] + creds[:colon] + ":***" + url[at:]
	}
	return url
}
