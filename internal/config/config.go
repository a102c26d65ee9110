package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string
	MongoURI    string
	RedisURL    string // optional; empty disables distributed locking

	// Text-generation provider (OpenAI-compatible)
	GenerationBaseURL string
	GenerationAPIKey  string
	GenerationModel   string
	GenerationRPS     float64 // outbound requests/second towards the provider

	// Operator authentication
	JWTSecret            string
	OperatorEmail        string
	OperatorPasswordHash string // argon2id encoded hash
	AccessTokenExpiry    time.Duration

	// Quota ceiling history file (optional; compiled-in defaults otherwise)
	QuotaConfigPath string

	ProfileCacheTTL time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "3001"),
		Environment: strings.ToLower(getEnv("ENVIRONMENT", "development")),
		MongoURI:    getEnv("MONGODB_URI", "mongodb://localhost:27017/opsdesk"),
		RedisURL:    getEnv("REDIS_URL", ""),

		GenerationBaseURL: getEnv("GENERATION_BASE_URL", "https://api.openai.com/v1"),
		GenerationAPIKey:  getEnv("GENERATION_API_KEY", ""),
		GenerationModel:   getEnv("GENERATION_MODEL", "gpt-4o-mini"),
		GenerationRPS:     getFloatEnv("GENERATION_RPS", 2),

		JWTSecret:            getEnv("JWT_SECRET", ""),
		OperatorEmail:        getEnv("OPERATOR_EMAIL", ""),
		OperatorPasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
		AccessTokenExpiry:    getDurationEnv("ACCESS_TOKEN_EXPIRY", 12*time.Hour),

		QuotaConfigPath: getEnv("QUOTA_CONFIG_PATH", ""),

		ProfileCacheTTL: getDurationEnv("PROFILE_CACHE_TTL", 5*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
