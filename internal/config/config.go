// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Embedding provider names accepted in EMBEDDING_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

// Config holds all application configuration.
type Config struct {
	// DatabaseURL selects the catalog backend: when set the Postgres +
	// pgvector store is used, when empty the flat in-memory store is used.
	DatabaseURL string
	Port        string
	LogLevel    string

	// DataPath is the raw catalog JSON loaded once at startup in flat mode.
	DataPath string

	// CORSOrigins is the comma-separated list of allowed origins ("*" for any).
	CORSOrigins string

	// Embedding provider selection and credentials.
	EmbeddingProvider   string
	EmbeddingDimensions int
	OpenAIAPIKey        string
	GeminiAPIKey        string

	// ChatModel is the text-generation model used for recommendation messages.
	ChatModel string

	// Connection pool bounds for persistent mode (backpressure, not queuing).
	DBMaxConns       int
	DBAcquireTimeout time.Duration

	// EmbeddingRateLimit caps embedding-provider calls per second during ingestion.
	EmbeddingRateLimit int

	// QueryCacheSize is the LRU size for cached query embeddings (0 disables).
	QueryCacheSize int
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// Load reads configuration from environment variables and returns a Config struct.
// It automatically loads .env file if it exists. Configuration errors are fatal
// at startup: callers must not serve requests with an invalid Config.
func Load() (*Config, error) {
	// Load .env file if it exists. Skip logging when absent (e.g. env from secrets/parameter store).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	dimensions := getEnvAsInt("EMBEDDING_DIMENSIONS", 1536)
	if dimensions <= 0 {
		return nil, errors.New("EMBEDDING_DIMENSIONS must be a positive integer")
	}

	provider := getEnv("EMBEDDING_PROVIDER", ProviderOpenAI)
	if provider != ProviderOpenAI && provider != ProviderGoogle {
		return nil, fmt.Errorf("EMBEDDING_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderGoogle, provider)
	}

	maxConns := getEnvAsInt("DB_MAX_CONNS", 100)
	if maxConns <= 0 {
		return nil, errors.New("DB_MAX_CONNS must be a positive integer")
	}

	acquireTimeout := getEnvAsInt("DB_ACQUIRE_TIMEOUT_SECONDS", 30)
	if acquireTimeout <= 0 {
		return nil, errors.New("DB_ACQUIRE_TIMEOUT_SECONDS must be a positive integer")
	}

	rateLimit := getEnvAsInt("EMBEDDING_RATE_LIMIT", 10)
	if rateLimit <= 0 {
		return nil, errors.New("EMBEDDING_RATE_LIMIT must be a positive integer")
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DataPath:    getEnv("PRODUCTS_DATA_PATH", "data.json"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		EmbeddingProvider:   provider,
		EmbeddingDimensions: dimensions,
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),

		ChatModel: getEnv("CHAT_MODEL", "gpt-4o-mini"),

		DBMaxConns:       maxConns,
		DBAcquireTimeout: time.Duration(acquireTimeout) * time.Second,

		EmbeddingRateLimit: rateLimit,
		QueryCacheSize:     getEnvAsInt("QUERY_CACHE_SIZE", 512),
	}

	return cfg, nil
}

// PersistentMode reports whether the Postgres catalog backend is selected.
// Mode is a pure function of configuration presence, decided once at startup.
func (c *Config) PersistentMode() bool {
	return c.DatabaseURL != ""
}

// EmbeddingAPIKey returns the credential for the selected embedding provider.
// Empty means the embedding capability (and with it /chat) is unavailable.
func (c *Config) EmbeddingAPIKey() string {
	if c.EmbeddingProvider == ProviderGoogle {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}
