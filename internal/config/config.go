// Package config loads service configuration from an optional YAML file,
// an optional .env file and STATEMENT_REVIEW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STATEMENT_REVIEW_"

// Config represents the top-level configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Model      ModelConfig      `yaml:"model"`
	Files      FilesConfig      `yaml:"files"`
	Records    RecordsConfig    `yaml:"records"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Review     ReviewConfig     `yaml:"review"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// ModelConfig selects the document model.
type ModelConfig struct {
	Provider        string        `yaml:"provider"` // gemini or openai
	Name            string        `yaml:"name"`
	APIKey          string        `yaml:"api_key"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

// FilesConfig selects where uploaded documents live.
type FilesConfig struct {
	Driver string `yaml:"driver"` // local or gcs
	Dir    string `yaml:"dir"`
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// RecordsConfig selects the record store.
type RecordsConfig struct {
	Driver      string `yaml:"driver"` // memory, bigquery or postgres
	ProjectID   string `yaml:"project_id"`
	Dataset     string `yaml:"dataset"`
	Table       string `yaml:"table"`
	DatabaseURL string `yaml:"database_url"`
}

// JobsConfig sizes the asynchronous extraction queue.
type JobsConfig struct {
	Workers    int `yaml:"workers"`
	BufferSize int `yaml:"buffer_size"`
	MaxRetries int `yaml:"max_retries"`

	// SweepInterval is how often the worker looks for PENDING files.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ExtractionConfig tunes the extraction coordinator.
type ExtractionConfig struct {
	StaleAfter time.Duration `yaml:"stale_after"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ReviewConfig sizes the check report cache.
type ReviewConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// Drivers and providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	FilesLocal = "local"
	FilesGCS   = "gcs"

	RecordsMemory   = "memory"
	RecordsBigQuery = "bigquery"
	RecordsPostgres = "postgres"
)

// Default returns a Config with the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    3 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Model: ModelConfig{
			Provider:        ProviderGemini,
			Name:            "gemini-2.5-flash",
			MaxOutputTokens: 16384,
			Timeout:         2 * time.Minute,
		},
		Files: FilesConfig{
			Driver: FilesLocal,
			Dir:    "./uploads",
		},
		Records: RecordsConfig{
			Driver:  RecordsMemory,
			Dataset: "statement_review",
			Table:   "statement_files",
		},
		Jobs: JobsConfig{
			Workers:       5,
			BufferSize:    100,
			MaxRetries:    2,
			SweepInterval: 30 * time.Second,
		},
		Extraction: ExtractionConfig{
			StaleAfter: 10 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Review: ReviewConfig{
			CacheSize: 1000,
		},
	}
}

// Load reads .env (if present), then the YAML file at path (if path is not
// empty), then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Load: reading .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Load: reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("Load: parsing config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides fields from the environment.
func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	num("PORT", &c.Server.Port)
	dur("READ_TIMEOUT", &c.Server.ReadTimeout)
	dur("WRITE_TIMEOUT", &c.Server.WriteTimeout)
	dur("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	str("MODEL_PROVIDER", &c.Model.Provider)
	str("MODEL_NAME", &c.Model.Name)
	str("MODEL_API_KEY", &c.Model.APIKey)
	num("MODEL_MAX_OUTPUT_TOKENS", &c.Model.MaxOutputTokens)
	dur("MODEL_TIMEOUT", &c.Model.Timeout)

	str("FILES_DRIVER", &c.Files.Driver)
	str("FILES_DIR", &c.Files.Dir)
	str("FILES_BUCKET", &c.Files.Bucket)
	str("FILES_PREFIX", &c.Files.Prefix)

	str("RECORDS_DRIVER", &c.Records.Driver)
	str("RECORDS_PROJECT_ID", &c.Records.ProjectID)
	str("RECORDS_DATASET", &c.Records.Dataset)
	str("RECORDS_TABLE", &c.Records.Table)
	str("DATABASE_URL", &c.Records.DatabaseURL)

	num("JOBS_WORKERS", &c.Jobs.Workers)
	num("JOBS_BUFFER_SIZE", &c.Jobs.BufferSize)
	num("JOBS_MAX_RETRIES", &c.Jobs.MaxRetries)
	dur("JOBS_SWEEP_INTERVAL", &c.Jobs.SweepInterval)

	dur("STALE_AFTER", &c.Extraction.StaleAfter)

	boolean("METRICS_ENABLED", &c.Metrics.Enabled)
	str("METRICS_PATH", &c.Metrics.Path)

	num("REVIEW_CACHE_SIZE", &c.Review.CacheSize)

	// Provider keys are read under their conventional names when no
	// explicit key is configured.
	if c.Model.APIKey == "" {
		var key string
		switch strings.ToLower(c.Model.Provider) {
		case ProviderGemini:
			key = "GEMINI_API_KEY"
		case ProviderOpenAI:
			key = "OPENAI_API_KEY"
		}
		if key != "" {
			if v, ok := lookup(key); ok {
				c.Model.APIKey = v
			}
		}
	}

	return errors.Join(errs...)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		fail("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		fail("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		fail("log.format must be console or json, got %q", c.Log.Format)
	}

	switch strings.ToLower(c.Model.Provider) {
	case ProviderGemini, ProviderOpenAI:
	default:
		fail("model.provider must be gemini or openai, got %q", c.Model.Provider)
	}
	if c.Model.Name == "" {
		fail("model.name is required")
	}
	if c.Model.MaxOutputTokens < 0 {
		fail("model.max_output_tokens must not be negative")
	}
	if c.Model.Timeout <= 0 {
		fail("model.timeout must be positive")
	}

	switch c.Files.Driver {
	case FilesLocal:
		if c.Files.Dir == "" {
			fail("files.dir is required for the local driver")
		}
	case FilesGCS:
		if c.Files.Bucket == "" {
			fail("files.bucket is required for the gcs driver")
		}
	default:
		fail("files.driver must be local or gcs, got %q", c.Files.Driver)
	}

	switch c.Records.Driver {
	case RecordsMemory:
	case RecordsBigQuery:
		if c.Records.ProjectID == "" || c.Records.Dataset == "" {
			fail("records.project_id and records.dataset are required for the bigquery driver")
		}
	case RecordsPostgres:
		if c.Records.DatabaseURL == "" {
			fail("records.database_url is required for the postgres driver")
		}
	default:
		fail("records.driver must be memory, bigquery or postgres, got %q", c.Records.Driver)
	}

	if c.Jobs.Workers <= 0 {
		fail("jobs.workers must be positive")
	}
	if c.Jobs.BufferSize < 0 {
		fail("jobs.buffer_size must not be negative")
	}
	if c.Jobs.MaxRetries < 0 {
		fail("jobs.max_retries must not be negative")
	}
	if c.Jobs.SweepInterval <= 0 {
		fail("jobs.sweep_interval must be positive")
	}
	if c.Extraction.StaleAfter <= 0 {
		fail("extraction.stale_after must be positive")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		fail("metrics.path must start with /, got %q", c.Metrics.Path)
	}
	if c.Review.CacheSize <= 0 {
		fail("review.cache_size must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
