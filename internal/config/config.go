package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// AppName names the configuration directory under XDG_CONFIG_HOME.
const AppName = "agrilens"

// Config holds all service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Intake   IntakeConfig   `yaml:"intake"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// AnalysisConfig configures the simulated analysis runs.
type AnalysisConfig struct {
	DiseaseDelay  string `yaml:"disease_delay"`
	GradeDelay    string `yaml:"grade_delay"`
	SessionTTL    string `yaml:"session_ttl"`
	SweepInterval string `yaml:"sweep_interval"`
	// RemoteAddr points at an optional gRPC analyzer. Empty means the
	// built-in random selector is used on its own.
	RemoteAddr string `yaml:"remote_addr"`
}

// IntakeConfig limits image uploads.
type IntakeConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// DatabaseConfig configures the postgres connection pool.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig configures the cache.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	JWTAudience string `yaml:"jwt_audience"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: "15s",
		},
		Analysis: AnalysisConfig{
			DiseaseDelay:  "2500ms",
			GradeDelay:    "3s",
			SessionTTL:    "30m",
			SweepInterval: "1m",
		},
		Intake: IntakeConfig{
			MaxUploadBytes: 10 << 20,
		},
		Database: DatabaseConfig{
			DSN:          "host=postgres user=postgres password=postgres dbname=agrilens port=5432 sslmode=disable",
			MaxIdleConns: 5,
			MaxOpenConns: 10,
		},
		Redis: RedisConfig{
			Addr: "redis:6379",
		},
		Auth: AuthConfig{
			JWTSecret: "dev-secret",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/agrilens/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// Load reads the YAML file at path on top of the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		c.Auth.JWTAudience = v
	}
	if v := os.Getenv("ANALYZER_ADDR"); v != "" {
		c.Analysis.RemoteAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return ErrMissingAddr
	}
	durations := map[string]string{
		"http.shutdown_timeout":   c.HTTP.ShutdownTimeout,
		"analysis.disease_delay":  c.Analysis.DiseaseDelay,
		"analysis.grade_delay":    c.Analysis.GradeDelay,
		"analysis.session_ttl":    c.Analysis.SessionTTL,
		"analysis.sweep_interval": c.Analysis.SweepInterval,
	}
	for field, raw := range durations {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return fmt.Errorf("%w: %s=%q", ErrInvalidDuration, field, raw)
		}
	}
	if c.Intake.MaxUploadBytes <= 0 {
		return ErrInvalidUploadSize
	}
	if c.Database.DSN == "" {
		return ErrMissingDSN
	}
	if c.Redis.Addr == "" {
		return ErrMissingRedisAddr
	}
	return nil
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseOr(c.HTTP.ShutdownTimeout, 15*time.Second)
}

// DiseaseDelay returns the simulated disease scan duration.
func (c *Config) DiseaseDelay() time.Duration {
	return parseOr(c.Analysis.DiseaseDelay, 2500*time.Millisecond)
}

// GradeDelay returns the simulated quality grading duration.
func (c *Config) GradeDelay() time.Duration {
	return parseOr(c.Analysis.GradeDelay, 3*time.Second)
}

// SessionTTL returns how long an untouched session is kept.
func (c *Config) SessionTTL() time.Duration {
	return parseOr(c.Analysis.SessionTTL, 30*time.Minute)
}

// SweepInterval returns how often expired sessions are evicted.
func (c *Config) SweepInterval() time.Duration {
	return parseOr(c.Analysis.SweepInterval, time.Minute)
}

func parseOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
