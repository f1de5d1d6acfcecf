// Package config handles configuration loading and defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Default values.
const (
	DefaultAddr                  = ":5000"
	DefaultConfigFile            = "tasks.toml"
	DefaultLogLevel              = "info"
	DefaultRequestTimeoutSeconds = 15
	DefaultDriver                = "sqlite"
	DefaultDBPath                = "instance/project.db"
	DefaultRateLimitRPS          = 5
	DefaultRateLimitBurst        = 10
	DefaultTraceExporter         = "none"
	DefaultServiceName           = "tasks-web"
)

// Drivers and exporters accepted by Validate.
var (
	drivers   = []string{"sqlite", "mysql", "memory"}
	exporters = []string{"none", "stdout", "otlp"}
	levels    = []string{"debug", "info", "warn", "warning", "error"}
)

// Config holds the full configuration for the server.
type Config struct {
	Addr     string `toml:"addr"`
	LogLevel string `toml:"log_level"`

	// SecretKey signs flash cookies. Empty means a random per-process key.
	SecretKey string `toml:"secret_key"`

	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`

	Store     StoreConfig     `toml:"store"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	CORS      CORSConfig      `toml:"cors"`
	Tracing   TracingConfig   `toml:"tracing"`
}

type StoreConfig struct {
	Driver string `toml:"driver"` // sqlite, mysql, memory
	Path   string `toml:"path"`   // sqlite database file
	DSN    string `toml:"dsn"`    // overrides Path for sqlite; required for mysql
}

// RateLimitConfig throttles POST requests. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `toml:"rps"`
	Burst int     `toml:"burst"`
}

// CORSConfig is only mounted when AllowedOrigins is non-empty.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

type TracingConfig struct {
	Exporter    string `toml:"exporter"` // none, stdout, otlp
	Endpoint    string `toml:"endpoint"`
	Insecure    bool   `toml:"insecure"`
	ServiceName string `toml:"service_name"`
}

// RequestTimeout is the per-request handler deadline.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. Config file (TOML; $TASKS_CONFIG or ./tasks.toml)
// 3. Environment variables
// 4. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	// 1. Set defaults
	setDefaults(cfg)

	// 2. Try to load from config file
	path, err := findConfigFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// 3. Override from environment
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	// 4. Parse CLI flags (they override everything)
	if err := parseFlags(cfg, fs, args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if cfg.SecretKey == "" {
		cfg.SecretKey = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Addr = DefaultAddr
	cfg.LogLevel = DefaultLogLevel
	cfg.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	cfg.Store = StoreConfig{
		Driver: DefaultDriver,
		Path:   DefaultDBPath,
	}
	cfg.RateLimit = RateLimitConfig{
		RPS:   DefaultRateLimitRPS,
		Burst: DefaultRateLimitBurst,
	}
	cfg.Tracing = TracingConfig{
		Exporter:    DefaultTraceExporter,
		ServiceName: DefaultServiceName,
	}
}

// findConfigFile returns $TASKS_CONFIG, which must exist, or the default
// file if present in the working directory.
func findConfigFile() (string, error) {
	if p := os.Getenv("TASKS_CONFIG"); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("config file %s: %w", p, err)
		}
		return p, nil
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile, nil
	}
	return "", nil
}

func parseFlags(cfg *Config, fs *flag.FlagSet, args []string) error {
	if fs == nil {
		fs = flag.NewFlagSet("tasks-web", flag.ContinueOnError)
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Store.Driver, "db-driver", cfg.Store.Driver, "Database driver (sqlite, mysql, memory)")
	fs.StringVar(&cfg.Store.Path, "db-path", cfg.Store.Path, "SQLite database file")
	fs.StringVar(&cfg.Store.DSN, "db-dsn", cfg.Store.DSN, "Database DSN (required for mysql)")
	fs.StringVar(&cfg.Tracing.Exporter, "trace-exporter", cfg.Tracing.Exporter, "Trace exporter (none, stdout, otlp)")
	return fs.Parse(args)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if !slices.Contains(levels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("log_level %q is not one of %v", c.LogLevel, levels))
	}
	if c.RequestTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout_seconds must be positive, got %d", c.RequestTimeoutSeconds))
	}
	if !slices.Contains(drivers, c.Store.Driver) {
		errs = append(errs, fmt.Errorf("store.driver %q is not one of %v", c.Store.Driver, drivers))
	}
	if c.Store.Driver == "mysql" && c.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required for mysql"))
	}
	if c.Store.Driver == "sqlite" && c.Store.DSN == "" && c.Store.Path == "" {
		errs = append(errs, errors.New("store.path or store.dsn is required for sqlite"))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	if !slices.Contains(exporters, c.Tracing.Exporter) {
		errs = append(errs, fmt.Errorf("tracing.exporter %q is not one of %v", c.Tracing.Exporter, exporters))
	}
	return errors.Join(errs...)
}
