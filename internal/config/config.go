// Package config provides configuration management for faultline.
//
// Settings come from three layers, later layers winning: built-in defaults,
// an optional YAML file named by FAULTLINE_CONFIG, and environment variables
// with the FAULTLINE_ prefix.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for faultline.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Security  SecurityConfig  `yaml:"security"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Notify    NotifyConfig    `yaml:"notify"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`             // Server host (default: 127.0.0.1)
	Port            int           `yaml:"port"`             // Server port (default: 8000)
	CORSOrigins     []string      `yaml:"cors_origins"`     // Allowed origins (default: *)
	RateLimit       float64       `yaml:"rate_limit"`       // Requests per second per client (default: 50)
	RateBurst       int           `yaml:"rate_burst"`       // Token bucket size (default: 100)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Graceful shutdown budget (default: 10s)
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	Engine      string        `yaml:"engine"`       // sqlite or postgres (default: sqlite)
	DataPath    string        `yaml:"data_path"`    // Data directory (default: ./data)
	SQLitePath  string        `yaml:"sqlite_path"`  // Database file (default: {data_path}/faultline.db)
	PostgresDSN string        `yaml:"postgres_dsn"` // Required when engine is postgres
	OpTimeout   time.Duration `yaml:"op_timeout"`   // Per-operation bound (default: 5s)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	Mode     string `yaml:"mode"`      // development or production (default: development)
	APIToken string `yaml:"api_token"` // Bearer token required in production mode
}

// IngestConfig controls event validation.
type IngestConfig struct {
	StrictValidation bool `yaml:"strict_validation"` // Reject events missing service/error_type (default: true)
}

// BreakerConfig configures the storage circuit breaker.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`      // default: true
	MaxFailures uint32        `yaml:"max_failures"` // Consecutive failures before opening (default: 5)
	Timeout     time.Duration `yaml:"timeout"`      // Open duration before half-open (default: 30s)
}

// NotifyConfig controls cross-process event files.
type NotifyConfig struct {
	EventFiles bool `yaml:"event_files"` // Write event files for faultline-web (default: true)
}

// SimulatorConfig configures faultline-sim.
type SimulatorConfig struct {
	TargetURL string        `yaml:"target_url"` // Webhook receiving events
	Interval  time.Duration `yaml:"interval"`   // Pause between events (default: 30s)
	Count     int           `yaml:"count"`      // Events to send, 0 for unlimited
	Seed      int64         `yaml:"seed"`       // Random seed, 0 for time based
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8000,
			CORSOrigins:     []string{"*"},
			RateLimit:       50,
			RateBurst:       100,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Engine:    "sqlite",
			DataPath:  "./data",
			OpTimeout: 5 * time.Second,
		},
		Security: SecurityConfig{
			Mode: "development",
		},
		Ingest: IngestConfig{
			StrictValidation: true,
		},
		Breaker: BreakerConfig{
			Enabled:     true,
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Notify: NotifyConfig{
			EventFiles: true,
		},
		Simulator: SimulatorConfig{
			TargetURL: "http://localhost:5678/webhook/incident/log",
			Interval:  30 * time.Second,
		},
	}
}

// LoadConfig loads defaults, then the YAML file named by FAULTLINE_CONFIG
// (if any), then environment variables, and validates the result.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("FAULTLINE_CONFIG"))
}

// Load is LoadConfig with an explicit YAML path. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides cfg with any FAULTLINE_* variables that are set.
func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("FAULTLINE_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("FAULTLINE_PORT", cfg.Server.Port)
	cfg.Server.CORSOrigins = getEnvList("FAULTLINE_CORS_ORIGINS", cfg.Server.CORSOrigins)
	cfg.Server.RateLimit = getEnvFloat("FAULTLINE_RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.RateBurst = getEnvInt("FAULTLINE_RATE_BURST", cfg.Server.RateBurst)
	cfg.Server.ShutdownTimeout = getEnvDuration("FAULTLINE_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Storage.Engine = getEnv("FAULTLINE_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("FAULTLINE_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.SQLitePath = getEnv("FAULTLINE_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.PostgresDSN = getEnv("FAULTLINE_POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.OpTimeout = getEnvDuration("FAULTLINE_OP_TIMEOUT", cfg.Storage.OpTimeout)

	cfg.Security.Mode = getEnv("FAULTLINE_SECURITY_MODE", cfg.Security.Mode)
	cfg.Security.APIToken = getEnv("FAULTLINE_API_TOKEN", cfg.Security.APIToken)

	cfg.Ingest.StrictValidation = getEnvBool("FAULTLINE_STRICT_VALIDATION", cfg.Ingest.StrictValidation)

	cfg.Breaker.Enabled = getEnvBool("FAULTLINE_BREAKER_ENABLED", cfg.Breaker.Enabled)
	cfg.Breaker.MaxFailures = uint32(getEnvInt("FAULTLINE_BREAKER_MAX_FAILURES", int(cfg.Breaker.MaxFailures)))
	cfg.Breaker.Timeout = getEnvDuration("FAULTLINE_BREAKER_TIMEOUT", cfg.Breaker.Timeout)

	cfg.Notify.EventFiles = getEnvBool("FAULTLINE_EVENT_FILES", cfg.Notify.EventFiles)

	cfg.Simulator.TargetURL = getEnv("FAULTLINE_SIM_TARGET_URL", cfg.Simulator.TargetURL)
	cfg.Simulator.Interval = getEnvDuration("FAULTLINE_SIM_INTERVAL", cfg.Simulator.Interval)
	cfg.Simulator.Count = getEnvInt("FAULTLINE_SIM_COUNT", cfg.Simulator.Count)
	cfg.Simulator.Seed = int64(getEnvInt("FAULTLINE_SIM_SEED", int(cfg.Simulator.Seed)))
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		errs = append(errs, errors.New("server.rate_limit and server.rate_burst must not be negative"))
	}

	switch c.Storage.Engine {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.engine %q is not one of sqlite, postgres", c.Storage.Engine))
	}
	if c.Storage.OpTimeout <= 0 {
		errs = append(errs, errors.New("storage.op_timeout must be positive"))
	}

	switch c.Security.Mode {
	case "development":
	case "production":
		if c.Security.APIToken == "" {
			errs = append(errs, errors.New("security.api_token is required in production mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("security.mode %q is not one of development, production", c.Security.Mode))
	}

	if c.Simulator.Interval < 0 {
		errs = append(errs, errors.New("simulator.interval must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SQLiteDSN returns the SQLite database location.
func (c *Config) SQLiteDSN() string {
	if c.Storage.SQLitePath != "" {
		return c.Storage.SQLitePath
	}
	return filepath.Join(c.Storage.DataPath, "faultline.db")
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsProduction reports whether bearer auth is enforced.
func (c *Config) IsProduction() bool {
	return c.Security.Mode == "production"
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5s", "1m30s").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
