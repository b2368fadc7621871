// Package config loads catalog server settings and wires a catalog.Service
// from them.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/content-catalog/pkg/catalog"
	"github.com/tendant/content-catalog/pkg/catalog/objectkey"
	"github.com/tendant/content-catalog/pkg/catalog/repo/memory"
	repopg "github.com/tendant/content-catalog/pkg/catalog/repo/postgres"
	reposqlite "github.com/tendant/content-catalog/pkg/catalog/repo/sqlite"
	fsstorage "github.com/tendant/content-catalog/pkg/catalog/storage/fs"
	memorystorage "github.com/tendant/content-catalog/pkg/catalog/storage/memory"
	s3storage "github.com/tendant/content-catalog/pkg/catalog/storage/s3"
)

// developmentJWTSecret signs tokens when no secret is configured outside
// production.
const developmentJWTSecret = "content-catalog-development-secret"

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                  "8080",
		Environment:           "development",
		LogLevel:              "info",
		DatabaseType:          "memory",
		DefaultStorageBackend: "memory",
		StorageBackends: []StorageBackendConfig{
			{Name: "memory", Type: "memory"},
		},
		KeyStrategy:        "git-like",
		MaxUploadBytes:     100 << 20,
		TokenTTL:           24 * time.Hour,
		EnableEventLogging: true,
	}
}

// ServerConfig represents configuration for the catalog server and tools
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	LogLevel    string

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres", "sqlite"
	DBSchema     string // Postgres schema to use
	AutoMigrate  bool   // apply the Postgres schema on start

	// Storage configuration
	DefaultStorageBackend string
	StorageBackends       []StorageBackendConfig
	KeyStrategy           string

	// HTTP options
	JWTSecret            string
	TokenTTL             time.Duration
	MaxUploadBytes       int64
	RestrictRegistration bool

	EnableEventLogging bool
}

// StorageBackendConfig represents configuration for a storage backend
type StorageBackendConfig struct {
	Name string
	Type string // "memory", "fs", "s3"
	FS   fsstorage.Config
	S3   s3storage.Config
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres", "sqlite":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'sqlite'")
	}

	found := false
	for _, backend := range c.StorageBackends {
		if backend.Name == c.DefaultStorageBackend {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("default storage backend '%s' not found in configured backends", c.DefaultStorageBackend)
	}

	if _, err := objectkey.ForStrategy(c.KeyStrategy); err != nil {
		return err
	}

	if c.MaxUploadBytes < 0 {
		return errors.New("max_upload_bytes cannot be negative")
	}

	if c.Environment == "production" && c.JWTSecret == "" {
		return errors.New("jwt_secret is required in production")
	}

	return nil
}

// Logger builds the process logger: JSON in production, text otherwise.
func (c *ServerConfig) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// JWTAuth returns the HS256 verifier and signer for identity tokens.
func (c *ServerConfig) JWTAuth() *jwtauth.JWTAuth {
	secret := c.JWTSecret
	if secret == "" {
		secret = developmentJWTSecret
	}
	return jwtauth.New("HS256", []byte(secret), nil)
}

// BuildService creates a Service instance from the server configuration.
// The returned cleanup closes any database pool it opened.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (catalog.Service, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	options := []catalog.Option{catalog.WithLogger(logger)}

	repo, cleanup, err := c.buildRepository(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}
	options = append(options, catalog.WithRepository(repo))

	for _, backendConfig := range c.StorageBackends {
		store, err := buildStorageBackend(backendConfig)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to build storage backend %s: %w", backendConfig.Name, err)
		}
		options = append(options, catalog.WithBlobStore(backendConfig.Name, store))
	}
	options = append(options, catalog.WithDefaultBackend(c.DefaultStorageBackend))

	generator, err := objectkey.ForStrategy(c.KeyStrategy)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	options = append(options, catalog.WithKeyGenerator(generator))

	if c.EnableEventLogging {
		options = append(options, catalog.WithEventSink(catalog.NewLoggingEventSink(logger)))
	}

	svc, err := catalog.New(options...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (catalog.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), func() {}, nil
	case "postgres":
		pool, err := NewPostgresPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		if c.AutoMigrate {
			if err := repopg.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repopg.NewWithPool(pool), pool.Close, nil
	case "sqlite":
		db, err := reposqlite.Open(ctx, sqlitePath(c.DatabaseURL))
		if err != nil {
			return nil, nil, err
		}
		return reposqlite.New(db), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// NewPostgresPool connects to Postgres and sets search_path when schema is
// given.
func NewPostgresPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

func sqlitePath(databaseURL string) string {
	return strings.TrimPrefix(databaseURL, "sqlite://")
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func buildStorageBackend(config StorageBackendConfig) (catalog.BlobStore, error) {
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(config.FS)
	case "s3":
		return s3storage.New(config.S3)
	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func upsertStorageBackend(backends []StorageBackendConfig, backend StorageBackendConfig) []StorageBackendConfig {
	for i := range backends {
		if backends[i].Name == backend.Name {
			backends[i] = backend
			return backends
		}
	}
	return append(backends, backend)
}
