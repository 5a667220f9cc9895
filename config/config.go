package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for petmatch.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Vector   VectorConfig   `yaml:"vector"`
	Encoder  EncoderConfig  `yaml:"encoder"`
	Similar  SimilarConfig  `yaml:"similar"`
	Server   ServerConfig   `yaml:"server"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// DatabaseConfig holds row store configuration.
type DatabaseConfig struct {
	Driver           string `yaml:"driver"`             // "mysql", "postgres", "sqlite"; empty detects from dsn
	DSN              string `yaml:"dsn"`
	DSNEnv           string `yaml:"dsn_env"`            // Environment variable overriding dsn
	Table            string `yaml:"table"`
	SoftDeleteColumn string `yaml:"soft_delete_column"` // Rows with a non-NULL value are skipped (empty = disabled)
}

// VectorConfig holds vector index configuration.
type VectorConfig struct {
	Backend    string `yaml:"backend"` // "qdrant", "bolt", "memory"
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
	Path       string `yaml:"path"`   // bolt database file
	Metric     string `yaml:"metric"` // "l2", "cosine", "dot"
	EF         int    `yaml:"ef"`
	BatchSize  int    `yaml:"batch_size"`
}

// EncoderConfig holds feature encoder configuration.
type EncoderConfig struct {
	Dimension int  `yaml:"dimension"`
	Stopwords bool `yaml:"stopwords"`
}

// SimilarConfig holds similarity query configuration.
type SimilarConfig struct {
	K           int  `yaml:"k"`
	ExcludeSelf bool `yaml:"exclude_self"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	RefreshInterval time.Duration `yaml:"refresh_interval"` // 0 disables periodic refresh
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Gops            bool          `yaml:"gops"`
}

// CacheConfig holds similar-result cache configuration.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"` // empty disables tracing
	ServiceName  string  `yaml:"service_name"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           "mysql",
			DSN:              "root:root@tcp(localhost:3306)/animal?parseTime=true",
			DSNEnv:           "PETMATCH_DATABASE_DSN",
			Table:            "animal",
			SoftDeleteColumn: "removed_at",
		},
		Vector: VectorConfig{
			Backend:    "qdrant",
			Host:       "localhost",
			Port:       6334,
			Collection: "animal_collection",
			Path:       filepath.Join(".petmatch", "vectors.db"),
			Metric:     "l2",
			EF:         10,
			BatchSize:  256,
		},
		Encoder: EncoderConfig{
			Dimension: 512,
			Stopwords: false,
		},
		Similar: SimilarConfig{
			K:           5,
			ExcludeSelf: false,
		},
		Server: ServerConfig{
			Addr:            ":8000",
			RefreshInterval: 10 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			Gops:            false,
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 1024,
			TTL:     5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			ServiceName: "petmatch",
			SampleRate:  1.0,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for petmatch.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "petmatch.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".petmatch", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolveDSN returns the DSN, preferring the environment variable named by
// dsn_env when it is set and non-empty.
func (c *Config) ResolveDSN() string {
	if c.Database.DSNEnv != "" {
		if v := strings.TrimSpace(os.Getenv(c.Database.DSNEnv)); v != "" {
			return v
		}
	}
	return c.Database.DSN
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "", "mysql", "mariadb", "postgres", "postgresql", "pg", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver)
	}
	if c.Database.Table == "" {
		return fmt.Errorf("database.table must be set")
	}

	switch c.Vector.Backend {
	case "qdrant":
		if c.Vector.Host == "" || c.Vector.Port <= 0 {
			return fmt.Errorf("vector: qdrant backend needs host and port")
		}
		if c.Vector.Collection == "" {
			return fmt.Errorf("vector.collection must be set")
		}
	case "bolt":
		if c.Vector.Path == "" {
			return fmt.Errorf("vector.path must be set for the bolt backend")
		}
	case "memory":
	default:
		return fmt.Errorf("vector.backend: unsupported backend %q", c.Vector.Backend)
	}
	switch c.Vector.Metric {
	case "l2", "cosine", "dot":
	default:
		return fmt.Errorf("vector.metric: unsupported metric %q", c.Vector.Metric)
	}
	if c.Vector.EF < 0 {
		return fmt.Errorf("vector.ef must not be negative, got %d", c.Vector.EF)
	}

	if c.Encoder.Dimension <= 0 {
		return fmt.Errorf("encoder.dimension must be positive, got %d", c.Encoder.Dimension)
	}
	if c.Server.RefreshInterval < 0 {
		return fmt.Errorf("server.refresh_interval must not be negative")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unsupported format %q", c.Logging.Format)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be within [0, 1], got %v", c.Tracing.SampleRate)
	}
	return nil
}

// StatePath returns the path of the local state directory.
func StatePath(dir string) string {
	return filepath.Join(dir, ".petmatch")
}

// EnsureStateDir ensures the .petmatch directory exists.
func EnsureStateDir(dir string) error {
	return os.MkdirAll(StatePath(dir), 0755)
}
