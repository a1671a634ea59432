// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	Publish  PublishConfig
	Upload   UploadConfig
	View     ViewConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including running publishes (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds PostgreSQL settings. Only used by the postgres driver.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	// Driver is "postgres" or "memory" (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres"`

	// MaxBatchSize is the largest atomic batch the store accepts (default: 500)
	MaxBatchSize int `env:"STORE_MAX_BATCH_SIZE" default:"500"`

	// Migrate applies schema migrations on startup (default: true)
	Migrate bool `env:"STORE_MIGRATE" default:"true"`
}

// PublishConfig holds batch publishing settings.
type PublishConfig struct {
	// CommitLimit is the number of rows per committed chunk (default: 450)
	CommitLimit int `env:"PUBLISH_COMMIT_LIMIT" default:"450"`

	// MaxConcurrent is the maximum number of publishes running at once (default: 4)
	MaxConcurrent int `env:"PUBLISH_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a publish waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"PUBLISH_MAX_WAIT_TIME" default:"30s"`
}

// UploadConfig holds file upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`
}

// ViewConfig holds table display settings.
type ViewConfig struct {
	// PageSize is the number of rows per page for viewers (default: 10)
	PageSize int `env:"VIEW_PAGE_SIZE" default:"10"`

	// PreviewPageSize is the number of rows per page in the upload preview (default: 5)
	PreviewPageSize int `env:"VIEW_PREVIEW_PAGE_SIZE" default:"5"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables API key authentication (default: false).
	// When disabled every request acts as LocalActor with the publisher role.
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of key:actor:role entries
	APIKeys []string `env:"API_KEYS"`

	// LocalActor is the actor id used when API keys are not required (default: local)
	LocalActor string `env:"LOCAL_ACTOR" default:"local"`

	// CORSAllowedOrigins is a comma-separated list of origins allowed to call the API
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
