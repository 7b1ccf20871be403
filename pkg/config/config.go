// Package config reads the environment (and an optional .env file) into
// validated settings. Load serves the dispenser client, LoadServer the
// devserver. Settings are checked up front so a bad value fails before the
// first request leaves.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Timeout ceilings for the HTTP client. Configured values above these are rejected.
const (
	MaxConnectTimeout = 15 * time.Second
	MaxReadTimeout    = 20 * time.Second
	MaxWriteTimeout   = 20 * time.Second
)

// State backends understood by database.Open.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all configuration for the dispenser client.
type Config struct {
	Client   ClientConfig
	State    StateConfig
	Redis    RedisConfig
	Intake   IntakeConfig
	LogLevel string
}

// ClientConfig holds the backend address and transport timeouts.
type ClientConfig struct {
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration // Time allowed for the response headers and body
	WriteTimeout   time.Duration // Time allowed for sending the request body
}

// StateConfig selects where the session token and active dispenser are persisted.
type StateConfig struct {
	Backend   string // sqlite, postgres or redis
	Path      string // SQLite database file
	DSN       string // PostgreSQL connection string
	Namespace string // Key prefix, one per installation
}

// RedisConfig locates a Redis instance.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// IntakeConfig holds the polling schedule of the intake workflow.
type IntakeConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
}

// ServerConfig holds configuration for the reference backend.
type ServerConfig struct {
	Port        string
	Environment string
	JWT         JWTConfig
	CORS        CORSConfig
	Simulation  SimulationConfig
	RateLimit   RateLimitConfig
	Redis       *RedisConfig // nil unless REDIS_HOST is set
	LogLevel    string
}

// JWTConfig holds the signing secret and lifetime of issued bearer tokens.
type JWTConfig struct {
	Secret []byte
	Expiry time.Duration
}

// CORSConfig lists the browser origins the devserver accepts.
type CORSConfig struct {
	AllowedOrigins []string
}

// RateLimitConfig holds rate limiting parameters for the account endpoints.
// Limiting needs Redis and is skipped without it.
type RateLimitConfig struct {
	RequestsPerMinute int
	WindowDuration    time.Duration
}

// SimulationConfig controls how the reference backend advances intake requests.
type SimulationConfig struct {
	ReadsUntilDone int    // Status reads before an intake leaves PROCESSING
	FailTag        string // Profiles carrying this tag end in FAIL
}

// Load builds the client configuration. Every variable is optional:
//   - BASE_URL: backend address (default http://localhost:8080)
//   - HTTP_CONNECT_TIMEOUT / HTTP_READ_TIMEOUT / HTTP_WRITE_TIMEOUT
//   - STATE_BACKEND: sqlite | postgres | redis (default sqlite)
//   - STATE_PATH, STATE_DSN, STATE_NAMESPACE
//   - REDIS_HOST, REDIS_PORT, REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE
//   - INTAKE_POLL_INTERVAL (default 2s), INTAKE_POLL_ATTEMPTS (default 10)
//   - LOG_LEVEL (default info)
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Client: ClientConfig{
			BaseURL:        strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
			ConnectTimeout: getEnvAsDuration("HTTP_CONNECT_TIMEOUT", MaxConnectTimeout),
			ReadTimeout:    getEnvAsDuration("HTTP_READ_TIMEOUT", MaxReadTimeout),
			WriteTimeout:   getEnvAsDuration("HTTP_WRITE_TIMEOUT", MaxWriteTimeout),
		},
		State: StateConfig{
			Backend:   getEnv("STATE_BACKEND", BackendSQLite),
			Path:      getEnv("STATE_PATH", defaultStatePath()),
			DSN:       getEnv("STATE_DSN", ""),
			Namespace: getEnv("STATE_NAMESPACE", "dispenser"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 10),
		},
		Intake: IntakeConfig{
			PollInterval: getEnvAsDuration("INTAKE_POLL_INTERVAL", 2*time.Second),
			MaxAttempts:  getEnvAsInt("INTAKE_POLL_ATTEMPTS", 10),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks that the client configuration is usable:
//   - the base URL is an absolute http(s) URL
//   - timeouts are positive and within the transport ceilings
//   - the state backend is known and has its location configured
//   - the polling schedule is positive
func (c *Config) Validate() error {
	u, err := url.ParseRequestURI(c.Client.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL must use http or https, got %q", u.Scheme)
	}

	if err := checkTimeout("connect", c.Client.ConnectTimeout, MaxConnectTimeout); err != nil {
		return err
	}
	if err := checkTimeout("read", c.Client.ReadTimeout, MaxReadTimeout); err != nil {
		return err
	}
	if err := checkTimeout("write", c.Client.WriteTimeout, MaxWriteTimeout); err != nil {
		return err
	}

	switch c.State.Backend {
	case BackendSQLite:
		if c.State.Path == "" {
			return fmt.Errorf("state path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.State.DSN == "" {
			return fmt.Errorf("state DSN is required for the postgres backend")
		}
	case BackendRedis:
		if _, err := strconv.Atoi(c.Redis.Port); err != nil {
			return fmt.Errorf("redis port must be a valid integer: %w", err)
		}
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}

	if c.State.Namespace == "" {
		return fmt.Errorf("state namespace is required")
	}

	if c.Intake.PollInterval <= 0 {
		return fmt.Errorf("intake poll interval must be positive")
	}
	if c.Intake.MaxAttempts <= 0 {
		return fmt.Errorf("intake poll attempts must be positive")
	}

	return nil
}

// LoadServer builds the devserver configuration. JWT_SECRET is required
// and must hold at least 32 bytes. Setting REDIS_HOST turns on rate limiting.
func LoadServer() (*ServerConfig, error) {
	_ = godotenv.Load()

	jwtSecret, err := getEnvRequired("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	config := &ServerConfig{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		JWT: JWTConfig{
			Secret: []byte(jwtSecret),
			Expiry: getEnvAsDuration("JWT_EXPIRY", 24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		},
		Simulation: SimulationConfig{
			ReadsUntilDone: getEnvAsInt("SIM_READS_UNTIL_DONE", 3),
			FailTag:        getEnv("SIM_FAIL_TAG", "FAIL_DISPENSE"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS", 30),
			WindowDuration:    getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		config.Redis = &RedisConfig{
			Host:     host,
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 10),
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the backend configuration.
func (c *ServerConfig) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("server port must be a valid integer: %w", err)
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes")
	}
	if c.JWT.Expiry <= 0 {
		return fmt.Errorf("JWT expiry must be positive")
	}
	if c.Simulation.ReadsUntilDone < 0 {
		return fmt.Errorf("simulation reads must not be negative")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit requests must be positive")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	return nil
}

func (c *RedisConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func checkTimeout(name string, value, ceiling time.Duration) error {
	if value <= 0 {
		return fmt.Errorf("%s timeout must be positive", name)
	}
	if value > ceiling {
		return fmt.Errorf("%s timeout %s exceeds %s", name, value, ceiling)
	}
	return nil
}

// defaultStatePath places the SQLite file under the user's config directory,
// falling back to the working directory.
func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "dispenser-state.db"
	}
	return filepath.Join(dir, "dispenser", "state.db")
}

func getEnv(key, fallback string) string {
	return envOr(key, fallback, func(v string) (string, error) { return v, nil })
}

func getEnvRequired(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("required environment variable %s is not set", key)
}

func getEnvAsInt(key string, fallback int) int {
	return envOr(key, fallback, strconv.Atoi)
}

// getEnvAsDuration accepts Go durations such as "500ms" or "2s".
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	return envOr(key, fallback, time.ParseDuration)
}

// getEnvAsSlice splits a comma separated list, dropping blanks.
func getEnvAsSlice(key string, fallback []string) []string {
	return envOr(key, fallback, func(v string) ([]string, error) {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("empty list")
		}
		return out, nil
	})
}

// envOr parses key, keeping fallback when it is unset or malformed.
func envOr[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := parse(raw)
	if err != nil {
		return fallback
	}
	return value
}
