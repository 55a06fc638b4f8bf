package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tasklist/internal/util"
)

// Config keeps runtime settings for the server.
type Config struct {
	Addr         string
	DBPath       string
	MaxOpenConns int
	SessionTTL   time.Duration
	CookieSecure bool
	LogLevel     string
}

// Load reads configuration from TASKLIST_* environment variables with defaults.
// Malformed values are reported together; the returned Config then holds
// defaults in their place.
func Load() (Config, error) {
	cfg := Config{
		Addr:     util.EnvOrDefault("TASKLIST_ADDR", ":8080"),
		DBPath:   util.EnvOrDefault("TASKLIST_DB_PATH", "data/tasklist.db"),
		LogLevel: util.EnvOrDefault("TASKLIST_LOG_LEVEL", "info"),
	}

	var errs []error
	var err error
	if cfg.MaxOpenConns, err = util.EnvInt("TASKLIST_MAX_CONNS", 4); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionTTL, err = util.EnvDuration("TASKLIST_SESSION_TTL", 7*24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.CookieSecure, err = util.EnvBool("TASKLIST_COOKIE_SECURE", false); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return cfg, fmt.Errorf("load config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", c.SessionTTL)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}
