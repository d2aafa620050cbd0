package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	Host               string
	Port               int
	CoinGeckoAPIURL    string
	CoinGeckoRateLimit int // API calls per minute
	RequestTimeout     int // seconds, per attempt
	CacheTTL           int // seconds
	CacheMaxSize       int
	ScanWorkers        int
	WarmIntervalMin    int // minutes between cache warm-ups, 0 disables
	WarmLimit          int // how many top coins the warm-up refreshes
	CORSOrigins        string
	LogLevel           string
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{
		Host:               getEnvWithDefault("HOST", "0.0.0.0"),
		Port:               getEnvIntWithDefault("PORT", 5000),
		CoinGeckoAPIURL:    getEnvWithDefault("COINGECKO_API_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoRateLimit: getEnvIntWithDefault("COINGECKO_RATE_LIMIT", 50),
		RequestTimeout:     getEnvIntWithDefault("REQUEST_TIMEOUT", 10),
		CacheTTL:           getEnvIntWithDefault("CACHE_TTL", 300),
		CacheMaxSize:       getEnvIntWithDefault("CACHE_MAX_SIZE", 1000),
		ScanWorkers:        getEnvIntWithDefault("SCAN_WORKERS", 10),
		WarmIntervalMin:    getEnvIntWithDefault("WARM_INTERVAL_MINUTES", 0),
		WarmLimit:          getEnvIntWithDefault("WARM_LIMIT", 100),
		CORSOrigins:        getEnvWithDefault("CORS_ORIGINS", "*"),
		LogLevel:           getEnvWithDefault("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
