package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// time.Duration is an int64 underneath
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Catalog validation
	if c.Catalog.URL == "" {
		errs = append(errs, "CATALOG_URL is required")
	}
	if !strings.Contains(c.Catalog.DatasetPattern, "%d") {
		errs = append(errs, fmt.Sprintf("CATALOG_DATASET_PATTERN (%q) must contain %%d for the year", c.Catalog.DatasetPattern))
	}
	if c.Catalog.Timeout <= 0 {
		errs = append(errs, "CATALOG_TIMEOUT must be positive")
	}

	if c.Download.Timeout <= 0 {
		errs = append(errs, "DOWNLOAD_TIMEOUT must be positive")
	}

	// Ingest validation
	if c.Ingest.BatchRows <= 0 {
		errs = append(errs, "INGEST_BATCH_ROWS must be positive")
	}
	if c.Ingest.SampleBytes < 512 {
		errs = append(errs, fmt.Sprintf("INGEST_SAMPLE_BYTES (%d) must be at least 512", c.Ingest.SampleBytes))
	}
	if strings.TrimSpace(c.Ingest.CountryCode) == "" {
		errs = append(errs, "COUNTRY_CODE must not be blank")
	}

	if c.Workspace.Dir == "" {
		errs = append(errs, "WORKDIR is required")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.MaxConcurrentRuns <= 0 {
		errs = append(errs, "SERVER_MAX_CONCURRENT_RUNS must be positive")
	}
	if c.Server.MaxRunWait <= 0 {
		errs = append(errs, "SERVER_MAX_RUN_WAIT must be positive")
	}

	// Database validation
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.BatchSize <= 0 {
		errs = append(errs, "DB_BATCH_SIZE must be positive")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys()) == 0 {
		errs = append(errs, "API_KEYS must list at least one key when REQUIRE_API_KEY is set")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	db := "[UNSET]"
	if c.Database.URL != "" {
		db = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Catalog: {URL: %q, DatasetPattern: %q}, ", c.Catalog.URL, c.Catalog.DatasetPattern))
	b.WriteString(fmt.Sprintf("Ingest: {BatchRows: %d, SampleBytes: %d, CountryCode: %q}, ",
		c.Ingest.BatchRows, c.Ingest.SampleBytes, c.Ingest.CountryCode))
	b.WriteString(fmt.Sprintf("Workspace: {Dir: %q}, ", c.Workspace.Dir))
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d, MaxConcurrentRuns: %d}, ",
		c.Server.Host, c.Server.Port, c.Server.MaxConcurrentRuns))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d, BatchSize: %d}, ",
		db, c.Database.MaxConns, c.Database.BatchSize))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %t, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys())))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
