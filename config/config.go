package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Backend   BackendConfig
	Session   SessionConfig
	Token     TokenStoreConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Payment   PaymentConfig
	Search    SearchConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
	LoginPath   string
}

type LogConfig struct {
	Level  string
	Format string
}

// BackendConfig selects the storefront backend origin and the client retry policy.
type BackendConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryUnit  time.Duration
}

type SessionConfig struct {
	CookieName   string
	CookieMaxAge time.Duration
	Secure       bool
	IdleTTL      time.Duration
}

// TokenStoreConfig picks where visitor credentials are persisted: memory, redis or database.
type TokenStoreConfig struct {
	Driver     string
	DefaultTTL time.Duration
}

type RedisConfig struct {
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
}

func (c *RedisConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type PaymentConfig struct {
	// Variant is "production" (msg/checksum) or "test" (bdorderid/merchantid/rdata).
	Variant string
}

type SearchConfig struct {
	Debounce time.Duration
}

type SchedulerConfig struct {
	CatalogRefreshSpec string
	SessionSweepSpec   string
	CatalogCacheTTL    time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LoginPath:   getEnv("LOGIN_PATH", "/login"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", ""),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Backend: BackendConfig{
			BaseURL:    strings.TrimRight(getEnv("BACKEND_BASE_URL", "http://localhost:5000/api"), "/"),
			Timeout:    parseDuration(getEnv("BACKEND_TIMEOUT", "10s"), 10*time.Second),
			MaxRetries: getEnvInt("BACKEND_MAX_RETRIES", 3),
			RetryUnit:  parseDuration(getEnv("BACKEND_RETRY_UNIT", "1s"), time.Second),
		},
		Session: SessionConfig{
			CookieName:   getEnv("SESSION_COOKIE_NAME", "sf_session"),
			CookieMaxAge: parseDuration(getEnv("SESSION_COOKIE_MAX_AGE", "720h"), 720*time.Hour),
			Secure:       getEnv("SESSION_COOKIE_SECURE", "false") == "true",
			IdleTTL:      parseDuration(getEnv("SESSION_IDLE_TTL", "30m"), 30*time.Minute),
		},
		Token: TokenStoreConfig{
			Driver:     getEnv("TOKEN_STORE_DRIVER", "memory"),
			DefaultTTL: parseDuration(getEnv("TOKEN_STORE_DEFAULT_TTL", "168h"), 168*time.Hour),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "storefront"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "storefront"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		},
		Payment: PaymentConfig{
			Variant: getEnv("PAYMENT_GATEWAY_VARIANT", "production"),
		},
		Search: SearchConfig{
			Debounce: parseDuration(getEnv("SEARCH_DEBOUNCE", "300ms"), 300*time.Millisecond),
		},
		Scheduler: SchedulerConfig{
			CatalogRefreshSpec: getEnv("CATALOG_REFRESH_SPEC", "@every 10m"),
			SessionSweepSpec:   getEnv("SESSION_SWEEP_SPEC", "@every 5m"),
			CatalogCacheTTL:    parseDuration(getEnv("CATALOG_CACHE_TTL", "15m"), 15*time.Minute),
		},
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
		if config.Server.Environment == "development" {
			config.Log.Level = "debug"
		}
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid integer %s=%s, using default %d", key, v, defaultValue)
		return defaultValue
	}
	return n
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
