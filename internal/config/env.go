package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// loadFromEnv overrides config from environment variables.
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("TASKS_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("TASKS_SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("TASKS_REQUEST_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TASKS_REQUEST_TIMEOUT_SECONDS: %w", err)
		}
		cfg.RequestTimeoutSeconds = n
	}

	if v := os.Getenv("TASKS_DB_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("TASKS_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("TASKS_DB_DSN"); v != "" {
		cfg.Store.DSN = v
	}

	if v := os.Getenv("TASKS_RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TASKS_RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimit.RPS = f
	}
	if v := os.Getenv("TASKS_RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TASKS_RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimit.Burst = n
	}

	if v := os.Getenv("TASKS_CORS_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitList(v)
	}

	if v := os.Getenv("TASKS_TRACE_EXPORTER"); v != "" {
		cfg.Tracing.Exporter = v
	}
	if v := os.Getenv("TASKS_TRACE_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		cfg.Tracing.ServiceName = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
