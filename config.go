package joydoc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config consolidates the settings of the engine, the tools and the server
type Config struct {
	Validation ValidationConfig `json:"validation" yaml:"validation"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Server     ServerConfig     `json:"server" yaml:"server"`
	Source     SourceConfig     `json:"source" yaml:"source"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
}

// ValidationConfig contains the behaviour switches of the validator
type ValidationConfig struct {
	// Strict adds warnings for undocumented enum values and unknown discriminants.
	Strict               bool `json:"strict" yaml:"strict"`
	CheckOrderReferences bool `json:"checkOrderReferences" yaml:"checkOrderReferences"`
	ParallelFields       bool `json:"parallelFields" yaml:"parallelFields"`
	MaxWorkers           int  `json:"maxWorkers" yaml:"maxWorkers"`
	// ParallelThreshold is the field count below which validation stays serial.
	ParallelThreshold int `json:"parallelThreshold" yaml:"parallelThreshold"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level          string `json:"level" yaml:"level"`
	Format         string `json:"format" yaml:"format"` // json or console
	Development    bool   `json:"development" yaml:"development"`
	LogValidations bool   `json:"logValidations" yaml:"logValidations"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int           `json:"port" yaml:"port"`
	MaxBodyBytes int64         `json:"maxBodyBytes" yaml:"maxBodyBytes"`
	ReadTimeout  time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
}

// SourceConfig contains settings for loading documents from object storage
type SourceConfig struct {
	S3 S3Config `json:"s3" yaml:"s3"`
	// MaxDocumentBytes bounds the size of a single loaded document.
	MaxDocumentBytes int64 `json:"maxDocumentBytes" yaml:"maxDocumentBytes"`
}

// S3Config contains S3 client settings. Empty credentials use the default chain.
type S3Config struct {
	Region          string `json:"region" yaml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"accessKeyId" yaml:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey" yaml:"secretAccessKey"`
	UsePathStyle    bool   `json:"usePathStyle" yaml:"usePathStyle"`
}

// StoreConfig contains report store connection settings
type StoreConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	Database        string        `json:"database" yaml:"database"`
	Username        string        `json:"username" yaml:"username"`
	Password        string        `json:"password" yaml:"password"`
	SSLMode         string        `json:"sslMode" yaml:"sslMode"`
	MaxConnections  int           `json:"maxConnections" yaml:"maxConnections"`
	MinConnections  int           `json:"minConnections" yaml:"minConnections"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime" yaml:"connMaxIdleTime"`
	Table           string        `json:"table" yaml:"table"`
	// UseIAM replaces Password with an Aurora DSQL auth token.
	UseIAM bool   `json:"useIAM" yaml:"useIAM"`
	Region string `json:"region" yaml:"region"`
	// BreakerThreshold failed writes within BreakerWindow stop report writes
	// for BreakerOpenDuration. Zero disables the breaker.
	BreakerThreshold    int           `json:"breakerThreshold" yaml:"breakerThreshold"`
	BreakerWindow       time.Duration `json:"breakerWindow" yaml:"breakerWindow"`
	BreakerOpenDuration time.Duration `json:"breakerOpenDuration" yaml:"breakerOpenDuration"`
}

// MetricsConfig contains metrics collection settings
type MetricsConfig struct {
	Enabled   bool              `json:"enabled" yaml:"enabled"`
	Namespace string            `json:"namespace" yaml:"namespace"`
	Path      string            `json:"path" yaml:"path"`
	Labels    map[string]string `json:"labels" yaml:"labels"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Validation: ValidationConfig{
			CheckOrderReferences: true,
			MaxWorkers:           4,
			ParallelThreshold:    64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Port:         8080,
			MaxBodyBytes: 10 * 1024 * 1024, // 10MB
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Source: SourceConfig{
			S3:               S3Config{Region: "us-east-1"},
			MaxDocumentBytes: 64 * 1024 * 1024,
		},
		Store: StoreConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "joydoc",
			Username:        "postgres",
			SSLMode:         "disable",
			MaxConnections:  10,
			MinConnections:  1,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Table:           "joydoc_validation_reports",

			BreakerThreshold:    5,
			BreakerWindow:       30 * time.Second,
			BreakerOpenDuration: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "joydoc",
			Path:      "/metrics",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Validation.MaxWorkers <= 0 {
		return &ConfigError{Field: "validation.maxWorkers", Message: "must be greater than 0"}
	}
	if c.Validation.ParallelThreshold < 0 {
		return &ConfigError{Field: "validation.parallelThreshold", Message: "must not be negative"}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: "must be one of debug, info, warn, error"}
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return &ConfigError{Field: "logging.format", Message: "must be json or console"}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Message: "must be between 1 and 65535"}
	}
	if c.Server.MaxBodyBytes <= 0 {
		return &ConfigError{Field: "server.maxBodyBytes", Message: "must be greater than 0"}
	}

	if c.Source.MaxDocumentBytes <= 0 {
		return &ConfigError{Field: "source.maxDocumentBytes", Message: "must be greater than 0"}
	}
	if c.Source.S3.AccessKeyID != "" && c.Source.S3.SecretAccessKey == "" {
		return &ConfigError{Field: "source.s3.secretAccessKey", Message: "is required with accessKeyId"}
	}
	if c.Source.S3.SecretAccessKey != "" && c.Source.S3.AccessKeyID == "" {
		return &ConfigError{Field: "source.s3.accessKeyId", Message: "is required with secretAccessKey"}
	}

	if c.Store.Enabled {
		if c.Store.Host == "" {
			return &ConfigError{Field: "store.host", Message: "is required when the store is enabled"}
		}
		if c.Store.MaxConnections <= 0 {
			return &ConfigError{Field: "store.maxConnections", Message: "must be greater than 0"}
		}
		if c.Store.MinConnections > c.Store.MaxConnections {
			return &ConfigError{Field: "store.minConnections", Message: "must be less than or equal to maxConnections"}
		}
		if c.Store.Table == "" {
			return &ConfigError{Field: "store.table", Message: "is required when the store is enabled"}
		}
		if c.Store.UseIAM && c.Store.Region == "" {
			return &ConfigError{Field: "store.region", Message: "is required when useIAM is set"}
		}
		if c.Store.BreakerThreshold < 0 {
			return &ConfigError{Field: "store.breakerThreshold", Message: "must not be negative"}
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return &ConfigError{Field: "metrics.path", Message: "must start with /"}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads the configuration file (or the defaults
// when path is empty) and applies JOYDOC_SECTION_FIELD environment variables,
// which always take precedence.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envBool("JOYDOC_VALIDATION_STRICT", &cfg.Validation.Strict)
	envBool("JOYDOC_VALIDATION_CHECK_ORDER_REFERENCES", &cfg.Validation.CheckOrderReferences)
	envBool("JOYDOC_VALIDATION_PARALLEL_FIELDS", &cfg.Validation.ParallelFields)
	envInt("JOYDOC_VALIDATION_MAX_WORKERS", &cfg.Validation.MaxWorkers)

	envString("JOYDOC_LOGGING_LEVEL", &cfg.Logging.Level)
	envString("JOYDOC_LOGGING_FORMAT", &cfg.Logging.Format)
	envBool("JOYDOC_LOGGING_DEVELOPMENT", &cfg.Logging.Development)
	envBool("JOYDOC_LOGGING_LOG_VALIDATIONS", &cfg.Logging.LogValidations)

	envInt("JOYDOC_SERVER_PORT", &cfg.Server.Port)
	if val := os.Getenv("JOYDOC_SERVER_MAX_BODY_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Server.MaxBodyBytes = i
		}
	}

	envString("JOYDOC_SOURCE_S3_REGION", &cfg.Source.S3.Region)
	envString("JOYDOC_SOURCE_S3_ENDPOINT", &cfg.Source.S3.Endpoint)
	envString("JOYDOC_SOURCE_S3_ACCESS_KEY_ID", &cfg.Source.S3.AccessKeyID)
	envString("JOYDOC_SOURCE_S3_SECRET_ACCESS_KEY", &cfg.Source.S3.SecretAccessKey)
	envBool("JOYDOC_SOURCE_S3_USE_PATH_STYLE", &cfg.Source.S3.UsePathStyle)

	envBool("JOYDOC_STORE_ENABLED", &cfg.Store.Enabled)
	envString("JOYDOC_STORE_HOST", &cfg.Store.Host)
	envInt("JOYDOC_STORE_PORT", &cfg.Store.Port)
	envString("JOYDOC_STORE_DATABASE", &cfg.Store.Database)
	envString("JOYDOC_STORE_USERNAME", &cfg.Store.Username)
	envString("JOYDOC_STORE_PASSWORD", &cfg.Store.Password)
	envString("JOYDOC_STORE_SSL_MODE", &cfg.Store.SSLMode)
	envInt("JOYDOC_STORE_MAX_CONNECTIONS", &cfg.Store.MaxConnections)
	envBool("JOYDOC_STORE_USE_IAM", &cfg.Store.UseIAM)
	envString("JOYDOC_STORE_REGION", &cfg.Store.Region)
	envString("JOYDOC_STORE_TABLE", &cfg.Store.Table)
	envInt("JOYDOC_STORE_BREAKER_THRESHOLD", &cfg.Store.BreakerThreshold)

	envBool("JOYDOC_METRICS_ENABLED", &cfg.Metrics.Enabled)
	envString("JOYDOC_METRICS_NAMESPACE", &cfg.Metrics.Namespace)
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}
