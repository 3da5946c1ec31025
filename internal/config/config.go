package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/stravella/chatwidget/internal/chatapi"
)

// Config is the process configuration read from the environment.
type Config struct {
	APIBase string

	Port    string
	DataDir string

	// WidgetConfigPath names a YAML or JSON file standing in for the page's
	// global config object.
	WidgetConfigPath  string
	HonorQuickActions bool

	RequestTimeout time.Duration
	SessionMaxAge  time.Duration

	LogLevel string
}

func Load() (*Config, error) {
	// .env is optional; env vars may already be set
	_ = godotenv.Load()

	cfg := &Config{
		APIBase:           getEnv("STRAVELLA_API_BASE", chatapi.DefaultBaseURL),
		Port:              getEnv("PORT", "8080"),
		DataDir:           getEnv("DATA_DIR", "."),
		WidgetConfigPath:  getEnv("STRAVELLA_WIDGET_CONFIG", ""),
		HonorQuickActions: getEnvBool("STRAVELLA_HONOR_QUICK_ACTIONS", false),
		RequestTimeout:    getEnvDuration("STRAVELLA_REQUEST_TIMEOUT", 0),
		SessionMaxAge:     getEnvDuration("STRAVELLA_SESSION_MAX_AGE", time.Hour),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the process cannot start with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("STRAVELLA_API_BASE must be an http(s) origin, got %q", c.APIBase)
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return errors.Errorf("PORT must be a port number, got %q", c.Port)
	}
	if c.DataDir == "" {
		return errors.New("DATA_DIR must not be empty")
	}
	if c.RequestTimeout < 0 {
		return errors.Errorf("STRAVELLA_REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if c.SessionMaxAge <= 0 {
		return errors.Errorf("STRAVELLA_SESSION_MAX_AGE must be positive, got %s", c.SessionMaxAge)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}

// DBPath is the bbolt file holding thread ids.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "stravella.db")
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

// getEnvDuration accepts Go durations ("30s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
