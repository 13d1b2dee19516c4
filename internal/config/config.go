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
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Engine   EngineConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	ReasoningLogPath   string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	OtelEnabled        bool
	OtelEndpoint       string
}

type DatabaseConfig struct {
	Driver string // "postgres" or "sqlite"
	DSN    string
}

type AIConfig struct {
	LLMProvider string // "ollama" or "openai"
	LLMModel    string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
}

type EngineConfig struct {
	UsageStore            string // "redis" or "memory"
	TierPolicyFile        string
	CorrelationMinOverlap float64
	CorrelationSampleSize int
	HistoryWindow         int
	SampleRows            int
	TurnLockTTL           time.Duration
	ProfileCacheTTL       time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			ReasoningLogPath:   getEnv("REASONING_LOG_PATH", "logs/reasoning.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:    getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			LLMProvider: getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:    getEnv("LLM_MODEL", "llama3"),
			BaseURL:     getEnv("LLM_BASE_URL", "http://localhost:11434"),
			APIKey:      getEnv("LLM_API_KEY", ""),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
			MaxRetries:  getEnvAsInt("LLM_MAX_RETRIES", 2),
		},
		Engine: EngineConfig{
			UsageStore:            strings.ToLower(getEnv("USAGE_STORE", "redis")),
			TierPolicyFile:        getEnv("TIER_POLICY_FILE", ""),
			CorrelationMinOverlap: getEnvAsFloat("CORRELATION_MIN_OVERLAP", 0.2),
			CorrelationSampleSize: getEnvAsInt("CORRELATION_SAMPLE_SIZE", 100),
			HistoryWindow:         getEnvAsInt("HISTORY_WINDOW", 10),
			SampleRows:            getEnvAsInt("SAMPLE_ROWS", 50),
			TurnLockTTL:           getEnvAsDuration("TURN_LOCK_TTL", 2*time.Minute),
			ProfileCacheTTL:       getEnvAsDuration("PROFILE_CACHE_TTL", 10*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
