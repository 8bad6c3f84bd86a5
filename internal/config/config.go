// Package config loads runtime configuration from the environment (optionally
// seeded from a .env file) and the schedule policy from a CUE file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the service.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	DBDSN string `envconfig:"DB_DSN" default:"file:rentroll.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"`

	RedisAddr string        `envconfig:"REDIS_ADDR"` // empty disables caching
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	BackendURL     string        `envconfig:"BACKEND_URL"` // empty disables sync
	BackendToken   string        `envconfig:"BACKEND_TOKEN"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"30s"`
	SyncSchedule   string        `envconfig:"SYNC_SCHEDULE" default:"*/15 * * * *"`

	Timezone       string `envconfig:"TIMEZONE" default:"UTC"`
	DueRule        string `envconfig:"DUE_RULE" default:"overdue_by_date"`
	LeaseSelection string `envconfig:"LEASE_SELECTION" default:"most_recent"`
	MaxMonths      int    `envconfig:"MAX_MONTHS" default:"12"`
	PolicyFile     string `envconfig:"POLICY_FILE"`

	CORSOrigins  []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
	RateLimitRPM int      `envconfig:"RATE_LIMIT_RPM" default:"300"`
	EventBuffer  int      `envconfig:"EVENT_BUFFER" default:"256"`
}

// Load reads a .env file when present, then configuration from environment
// variables. Variables already set in the environment win over .env.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction returns true when the service runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
