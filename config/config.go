package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	// Port is the HTTP listen port (default: "3000")
	Port string

	// StoreDriver selects the document store backend: "sqlite" or "postgres"
	StoreDriver string

	// DBPath is the SQLite database file path
	DBPath string

	// DBDebug enables SQL logging for the SQLite store
	DBDebug bool

	// DatabaseURL is the PostgreSQL connection string (postgres driver only)
	DatabaseURL string

	// PerspectiveURL is the comment analysis endpoint
	PerspectiveURL string

	// PerspectiveAPIKey is the moderation service key; empty disables moderation
	PerspectiveAPIKey string

	// ModerationThreshold is the inclusive score at which a text is blocked
	ModerationThreshold float64

	// ModerationTimeout bounds a single moderation call
	ModerationTimeout time.Duration

	// RedisAddr enables the moderation verdict cache when set
	RedisAddr string

	// RedisPassword is the Redis authentication password (optional)
	RedisPassword string

	// RedisDB is the Redis database number
	RedisDB int

	// VerdictTTL is how long a moderation verdict stays cached
	VerdictTTL time.Duration

	// RoomCodeLength is the length of generated room codes
	RoomCodeLength int

	// CORSOrigins is the comma separated list of allowed origins
	CORSOrigins string

	// ToastTTL is how long clients display a notification
	ToastTTL time.Duration
}

// DefaultPerspectiveURL is the public comment analysis endpoint.
const DefaultPerspectiveURL = "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze"

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:                "3000",
		StoreDriver:         DriverSQLite,
		DBPath:              "chatroom.db",
		PerspectiveURL:      DefaultPerspectiveURL,
		ModerationThreshold: 0.3,
		ModerationTimeout:   5 * time.Second,
		VerdictTTL:          10 * time.Minute,
		RoomCodeLength:      6,
		CORSOrigins:         "*",
		ToastTTL:            3 * time.Second,
	}
}

// Option is a function that modifies Config.
type Option func(*Config)

// WithPort sets the HTTP listen port.
func WithPort(port string) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithStoreDriver sets the store backend.
func WithStoreDriver(driver string) Option {
	return func(c *Config) {
		c.StoreDriver = driver
	}
}

// WithDBPath sets the SQLite database path.
func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithDatabaseURL sets the PostgreSQL connection string.
func WithDatabaseURL(url string) Option {
	return func(c *Config) {
		c.DatabaseURL = url
	}
}

// WithPerspective sets the moderation endpoint and key.
func WithPerspective(url, apiKey string) Option {
	return func(c *Config) {
		c.PerspectiveURL = url
		c.PerspectiveAPIKey = apiKey
	}
}

// WithModerationThreshold sets the blocking threshold.
func WithModerationThreshold(threshold float64) Option {
	return func(c *Config) {
		c.ModerationThreshold = threshold
	}
}

// WithModerationTimeout sets the moderation call timeout.
func WithModerationTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ModerationTimeout = d
	}
}

// WithRedis sets the verdict cache connection.
func WithRedis(addr, password string, db int) Option {
	return func(c *Config) {
		c.RedisAddr = addr
		c.RedisPassword = password
		c.RedisDB = db
	}
}

// WithRoomCodeLength sets the generated room code length.
func WithRoomCodeLength(n int) Option {
	return func(c *Config) {
		c.RoomCodeLength = n
	}
}

// New returns the default config with the given options applied.
func New(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Load reads the given env files (".env" when none are given) if they exist,
// then builds the config from environment variables on top of the defaults.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", cfg.StoreDriver))
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.PerspectiveURL = getEnv("PERSPECTIVE_API_URL", cfg.PerspectiveURL)
	cfg.PerspectiveAPIKey = getEnv("PERSPECTIVE_API_KEY", cfg.PerspectiveAPIKey)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.CORSOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.CORSOrigins)

	var err error
	if cfg.DBDebug, err = getEnvBool("DB_DEBUG", cfg.DBDebug); err != nil {
		return Config{}, err
	}
	if cfg.ModerationThreshold, err = getEnvFloat("MODERATION_THRESHOLD", cfg.ModerationThreshold); err != nil {
		return Config{}, err
	}
	if cfg.ModerationTimeout, err = getEnvDuration("MODERATION_TIMEOUT", cfg.ModerationTimeout); err != nil {
		return Config{}, err
	}
	if cfg.VerdictTTL, err = getEnvDuration("MODERATION_CACHE_TTL", cfg.VerdictTTL); err != nil {
		return Config{}, err
	}
	if cfg.ToastTTL, err = getEnvDuration("TOAST_TTL", cfg.ToastTTL); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", cfg.RedisDB); err != nil {
		return Config{}, err
	}
	if cfg.RoomCodeLength, err = getEnvInt("ROOM_CODE_LENGTH", cfg.RoomCodeLength); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config for values the application cannot run with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite store")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.ModerationThreshold <= 0 || c.ModerationThreshold > 1 {
		return fmt.Errorf("MODERATION_THRESHOLD must be in (0, 1], got %v", c.ModerationThreshold)
	}
	if c.ModerationTimeout <= 0 {
		return errors.New("MODERATION_TIMEOUT must be positive")
	}
	if c.RoomCodeLength < 4 || c.RoomCodeLength > 32 {
		return fmt.Errorf("ROOM_CODE_LENGTH must be between 4 and 32, got %d", c.RoomCodeLength)
	}
	return nil
}

// ModerationEnabled reports whether a moderation key is configured.
func (c Config) ModerationEnabled() bool {
	return c.PerspectiveAPIKey != ""
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
