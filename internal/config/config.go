package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server
	ServerPort int
	StaticDir  string
	// Proxies whose X-Forwarded-For is honoured; none by default
	TrustedProxies []string

	// Database
	DBType string // "mongo" or "memory"

	// MongoDB
	MongoURI             string
	MongoDB              string
	MongoSitesCollection string
	MongoUsersCollection string

	// InfluxDB (status history, disabled when InfluxURL is empty)
	InfluxURL      string
	InfluxToken    string
	InfluxDatabase string

	// Status event batching
	EventBatchSize     int
	EventFlushInterval int // milliseconds

	// Redis (login limiter, in-process when empty)
	RedisURL string

	// Auth
	JWTSecret          string
	TokenTTL           time.Duration
	AdminUsername      string
	AdminPassword      string
	LoginRatePerMinute int

	// Caching
	SiteListCacheTTL time.Duration

	// Logging
	LogLevel      string
	LogDir        string
	LogFileMaxAge int // days
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:     getEnvInt("SERVER_PORT", 8001),
		StaticDir:      getEnv("STATIC_DIR", "./static"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		DBType:         strings.ToLower(getEnv("DB_TYPE", "mongo")),

		// MongoDB
		MongoURI:             getEnv("MONGO_URI", getEnv("MONGODB_URI", "mongodb://localhost:27017")),
		MongoDB:              getEnv("MONGO_DATABASE", "site_registry"),
		MongoSitesCollection: getEnv("MONGO_SITES_COLLECTION", "sites"),
		MongoUsersCollection: getEnv("MONGO_USERS_COLLECTION", "users"),

		// InfluxDB
		InfluxURL:      getEnv("INFLUXDB_URL", ""),
		InfluxToken:    getEnv("INFLUXDB_TOKEN", ""),
		InfluxDatabase: getEnv("INFLUXDB_DATABASE", "site_registry"),

		EventBatchSize:     getEnvInt("EVENT_BATCH_SIZE", 50),
		EventFlushInterval: getEnvInt("EVENT_FLUSH_INTERVAL", 1000),

		RedisURL: getEnv("REDIS_URL", ""),

		// Auth
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
		TokenTTL:           getEnvDuration("TOKEN_TTL", 7*24*time.Hour),
		AdminUsername:      strings.TrimSpace(getEnv("ADMIN_USERNAME", getEnv("ADMIN", ""))),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		LoginRatePerMinute: getEnvInt("LOGIN_RATE_PER_MINUTE", 20),

		SiteListCacheTTL: getEnvDuration("SITE_LIST_CACHE_TTL", 30*time.Second),

		// Logging
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		LogDir:        getEnv("LOG_DIRECTORY", "./logs"),
		LogFileMaxAge: getEnvInt("LOG_FILE_MAX_AGE", 2),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.DBType != "mongo" && c.DBType != "memory" {
		return fmt.Errorf("invalid DB_TYPE: %s (use 'mongo' or 'memory')", c.DBType)
	}

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.ServerPort)
	}

	if c.EventBatchSize < 1 || c.EventBatchSize > 10000 {
		return fmt.Errorf("invalid EVENT_BATCH_SIZE: %d (must be 1-10000)", c.EventBatchSize)
	}

	if c.EventFlushInterval < 50 || c.EventFlushInterval > 60000 {
		return fmt.Errorf("invalid EVENT_FLUSH_INTERVAL: %d (must be 50-60000ms)", c.EventFlushInterval)
	}

	if c.LoginRatePerMinute <= 0 {
		return fmt.Errorf("LOGIN_RATE_PER_MINUTE must be positive")
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}

	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}

	if c.SiteListCacheTTL < 0 {
		return fmt.Errorf("SITE_LIST_CACHE_TTL must not be negative")
	}

	return nil
}

// BreakGlassEnabled reports whether the configured admin identity is active.
func (c *Config) BreakGlassEnabled() bool {
	return c.AdminUsername != "" && c.AdminPassword != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
