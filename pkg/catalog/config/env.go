package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	fsstorage "github.com/tendant/content-catalog/pkg/catalog/storage/fs"
	s3storage "github.com/tendant/content-catalog/pkg/catalog/storage/s3"
)

// Settings is the flat, file- and environment-facing form of ServerConfig.
//
// Database:
//
//	DATABASE_URL - "" or "memory" for in-memory, "postgres://..." or
//	               "postgresql://..." for Postgres, "sqlite://path" for SQLite
//
// Storage:
//
//	STORAGE_URL - "memory://" (default), "file:///path/to/data" or
//	              "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true"
type Settings struct {
	Port        string `yaml:"port" json:"port" toml:"port" env:"PORT" env-default:"8080"`
	Environment string `yaml:"environment" json:"environment" toml:"environment" env:"ENVIRONMENT" env-default:"development"`
	LogLevel    string `yaml:"log_level" json:"log_level" toml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	DatabaseURL string `yaml:"database_url" json:"database_url" toml:"database_url" env:"DATABASE_URL"`
	DBSchema    string `yaml:"db_schema" json:"db_schema" toml:"db_schema" env:"DB_SCHEMA"`
	AutoMigrate bool   `yaml:"auto_migrate" json:"auto_migrate" toml:"auto_migrate" env:"AUTO_MIGRATE" env-default:"false"`

	StorageURL  string `yaml:"storage_url" json:"storage_url" toml:"storage_url" env:"STORAGE_URL" env-default:"memory://"`
	KeyStrategy string `yaml:"key_strategy" json:"key_strategy" toml:"key_strategy" env:"KEY_STRATEGY" env-default:"git-like"`

	AWSAccessKeyID     string `yaml:"aws_access_key_id" json:"aws_access_key_id" toml:"aws_access_key_id" env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `yaml:"aws_secret_access_key" json:"aws_secret_access_key" toml:"aws_secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string `yaml:"aws_region" json:"aws_region" toml:"aws_region" env:"AWS_REGION"`
	S3PresignSeconds   int    `yaml:"s3_presign_seconds" json:"s3_presign_seconds" toml:"s3_presign_seconds" env:"S3_PRESIGN_SECONDS" env-default:"3600"`

	JWTSecret            string        `yaml:"jwt_secret" json:"jwt_secret" toml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL             time.Duration `yaml:"token_ttl" json:"token_ttl" toml:"token_ttl" env:"TOKEN_TTL" env-default:"24h"`
	MaxUploadBytes       int64         `yaml:"max_upload_bytes" json:"max_upload_bytes" toml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" env-default:"104857600"`
	RestrictRegistration bool          `yaml:"restrict_registration" json:"restrict_registration" toml:"restrict_registration" env:"RESTRICT_REGISTRATION" env-default:"false"`
	EnableEventLogging   bool          `yaml:"enable_event_logging" json:"enable_event_logging" toml:"enable_event_logging" env:"ENABLE_EVENT_LOGGING" env-default:"true"`
}

// WithEnv reads Settings from the process environment.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var s Settings
		if err := cleanenv.ReadEnv(&s); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
		return s.apply(c)
	}
}

// WithConfigFile reads Settings from a YAML, JSON, TOML or .env file.
// Environment variables override values from the file.
func WithConfigFile(path string) Option {
	return func(c *ServerConfig) error {
		var s Settings
		if err := cleanenv.ReadConfig(path, &s); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return s.apply(c)
	}
}

// Usage describes every environment variable Settings reads.
func Usage() string {
	var s Settings
	text, err := cleanenv.GetDescription(&s, nil)
	if err != nil {
		return err.Error()
	}
	return text
}

func (s Settings) apply(c *ServerConfig) error {
	c.Port = s.Port
	c.Environment = s.Environment
	c.LogLevel = s.LogLevel
	c.DBSchema = s.DBSchema
	c.AutoMigrate = s.AutoMigrate
	c.KeyStrategy = s.KeyStrategy
	c.JWTSecret = s.JWTSecret
	c.TokenTTL = s.TokenTTL
	c.MaxUploadBytes = s.MaxUploadBytes
	c.RestrictRegistration = s.RestrictRegistration
	c.EnableEventLogging = s.EnableEventLogging

	if err := applyDatabaseURL(s.DatabaseURL, c); err != nil {
		return err
	}
	return applyStorageURL(s, c)
}

// applyDatabaseURL detects the database type from the URL scheme.
func applyDatabaseURL(dbURL string, c *ServerConfig) error {
	switch {
	case dbURL == "" || dbURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "sqlite://"):
		if strings.TrimPrefix(dbURL, "sqlite://") == "" {
			return fmt.Errorf("sqlite path cannot be empty in DATABASE_URL")
		}
		c.DatabaseType = "sqlite"
		c.DatabaseURL = dbURL
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgresql://...' or 'sqlite://...')", dbURL)
	}
	return nil
}

// applyStorageURL configures the default blob store from STORAGE_URL.
func applyStorageURL(s Settings, c *ServerConfig) error {
	storageURL := s.StorageURL
	switch {
	case storageURL == "" || storageURL == "memory" || storageURL == "memory://":
		c.DefaultStorageBackend = "memory"
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{Name: "memory", Type: "memory"})
		return nil

	case strings.HasPrefix(storageURL, "file://"):
		path := strings.TrimPrefix(storageURL, "file://")
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		c.DefaultStorageBackend = "fs"
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: "fs",
			Type: "fs",
			FS:   fsstorage.Config{BaseDir: path},
		})
		return nil

	case strings.HasPrefix(storageURL, "s3://"):
		u, err := url.Parse(storageURL)
		if err != nil {
			return fmt.Errorf("invalid STORAGE_URL: %w", err)
		}
		if u.Host == "" {
			return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
		}
		q := u.Query()

		s3cfg := s3storage.Config{
			Bucket:                 u.Host,
			Region:                 firstNonEmpty(q.Get("region"), s.AWSRegion, "us-east-1"),
			Endpoint:               q.Get("endpoint"),
			AccessKeyID:            s.AWSAccessKeyID,
			SecretAccessKey:        s.AWSSecretAccessKey,
			PresignDuration:        s.S3PresignSeconds,
			SSEAlgorithm:           q.Get("sse"),
			SSEKMSKeyID:            q.Get("sse_kms_key_id"),
			EnableSSE:              q.Get("sse") != "",
			UsePathStyle:           queryBool(q, "path_style"),
			CreateBucketIfNotExist: queryBool(q, "create_bucket"),
		}
		c.DefaultStorageBackend = "s3"
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{Name: "s3", Type: "s3", S3: s3cfg})
		return nil
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

func queryBool(q url.Values, key string) bool {
	b, _ := strconv.ParseBool(q.Get(key))
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
