package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// ErrMissingAPIKey is returned when no TMDB API key is configured.
var ErrMissingAPIKey = errors.New("TMDB_API_KEY is required")

// Config holds all configuration for the CineSphere service.
type Config struct {
	DB          DBConfig
	Mongo       MongoConfig
	Redis       RedisConfig
	TMDB        TMDBConfig
	RateLimit   RateLimitConfig
	StoreDriver string
	Port        string
	LogLevel    slog.Level

	SearchDebounce time.Duration
	CacheTTL       time.Duration
}

// DBConfig holds PostgreSQL configuration.
type DBConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SSLRootCert string
}

// DSN returns the PostgreSQL connection string.
func (d DBConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
	if d.SSLRootCert != "" {
		dsn += fmt.Sprintf(" sslrootcert=%s", d.SSLRootCert)
	}
	return dsn
}

// MongoConfig holds MongoDB configuration.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TMDBConfig holds TMDB API configuration.
type TMDBConfig struct {
	APIKey            string
	BaseURL           string
	ImageBaseURL      string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// RateLimitConfig controls the inbound per-client limiter.
type RateLimitConfig struct {
	Max           int
	WindowSeconds int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DB: DBConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "cinesphere"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			SSLRootCert: getEnv("DB_SSLROOTCERT", ""),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
			Database: getEnv("MONGO_DB", "cinesphere"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		TMDB: TMDBConfig{
			APIKey:            getEnv("TMDB_API_KEY", ""),
			BaseURL:           strings.TrimRight(getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"), "/"),
			ImageBaseURL:      strings.TrimRight(getEnv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p/w500"), "/"),
			Timeout:           time.Duration(getEnvInt("TMDB_TIMEOUT_SECONDS", 15)) * time.Second,
			RequestsPerSecond: getEnvFloat("TMDB_RPS", 40),
		},
		RateLimit: RateLimitConfig{
			Max:           getEnvInt("RATE_LIMIT_MAX", 100),
			WindowSeconds: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		Port:           getEnv("SERVER_PORT", "8080"),
		LogLevel:       parseLevel(getEnv("LOG_LEVEL", "info")),
		SearchDebounce: time.Duration(getEnvInt("SEARCH_DEBOUNCE_MS", 500)) * time.Millisecond,
		CacheTTL:       time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that the service cannot start with.
func (c *Config) Validate() error {
	if c.TMDB.APIKey == "" {
		return ErrMissingAPIKey
	}
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMongo, StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.RateLimit.Max < 1 || c.RateLimit.WindowSeconds < 1 {
		return fmt.Errorf("rate limit must be positive (max=%d window=%ds)", c.RateLimit.Max, c.RateLimit.WindowSeconds)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
