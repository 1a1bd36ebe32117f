// Package config provides centralized configuration management for the importer.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables; the CLI may
// override a few of them with flags.
type Config struct {
	Catalog   CatalogConfig
	Download  DownloadConfig
	Ingest    IngestConfig
	Workspace WorkspaceConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// CatalogConfig holds settings for the CKAN dataset catalog.
type CatalogConfig struct {
	// URL is the package_show endpoint queried with ?id=<dataset>
	URL string `env:"CATALOG_URL" default:"https://datos.gob.cl/api/3/action/package_show"`

	// DatasetPattern is a fmt pattern receiving the year (default: registro-de-importacion-%d)
	DatasetPattern string `env:"CATALOG_DATASET_PATTERN" default:"registro-de-importacion-%d"`

	// Timeout bounds one catalog request (default: 60s)
	Timeout time.Duration `env:"CATALOG_TIMEOUT" default:"60s"`
}

// DownloadConfig holds bulk download settings.
type DownloadConfig struct {
	// Timeout bounds connecting, waiting for headers and each idle gap while reading one download (default: 5m)
	Timeout time.Duration `env:"DOWNLOAD_TIMEOUT" default:"5m"`
}

// IngestConfig holds tabular parsing settings.
type IngestConfig struct {
	// BatchRows is the maximum number of rows held in memory per batch (default: 5000)
	BatchRows int `env:"INGEST_BATCH_ROWS" default:"5000"`

	// SampleBytes is the leading sample used for encoding/delimiter sniffing (default: 20000)
	SampleBytes int `env:"INGEST_SAMPLE_BYTES" default:"20000"`

	// SchemaFile optionally replaces the built-in column layout (one name per line)
	SchemaFile string `env:"INGEST_SCHEMA_FILE"`

	// CountryCode is injected into every record (default: CL)
	CountryCode string `env:"COUNTRY_CODE" default:"CL"`
}

// WorkspaceConfig holds staging directory settings.
type WorkspaceConfig struct {
	// Dir is the staging root; removed at the end of each run when empty (default: ./data_work)
	Dir string `env:"WORKDIR" default:"./data_work"`
}

// ServerConfig holds HTTP server settings for `serve`.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// MaxConcurrentRuns caps parallel import runs (default: 2)
	MaxConcurrentRuns int `env:"SERVER_MAX_CONCURRENT_RUNS" default:"2"`

	// MaxRunWait is how long a request waits for a run slot (default: 30s)
	MaxRunWait time.Duration `env:"SERVER_MAX_RUN_WAIT" default:"30s"`
}

// DatabaseConfig holds optional persistence settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; persistence is disabled when empty
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// BatchSize is the number of records per COPY batch (default: 1000)
	BatchSize int `env:"DB_BATCH_SIZE" default:"1000"`
}

// SecurityConfig holds access settings for the HTTP server.
type SecurityConfig struct {
	// RequireAPIKey rejects requests without a valid X-API-Key header (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeysRaw is a comma-separated list of accepted API keys
	APIKeysRaw string `env:"API_KEYS"`

	// TrustedProxiesRaw is a comma-separated list of proxy CIDRs whose
	// X-Real-IP / X-Forwarded-For headers are honored
	TrustedProxiesRaw string `env:"TRUSTED_PROXIES"`
}

// APIKeys returns the configured keys, blanks removed.
func (c *SecurityConfig) APIKeys() []string { return splitList(c.APIKeysRaw) }

// TrustedProxies returns the configured proxy CIDRs.
func (c *SecurityConfig) TrustedProxies() []string { return splitList(c.TrustedProxiesRaw) }

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: warn)
	Level string `env:"LOG_LEVEL" default:"warn"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
