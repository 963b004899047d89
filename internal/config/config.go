package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	TelegramBotToken      string
	TelegramAPIBaseURL    string
	TelegramWebhookSecret string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAITimeout time.Duration

	GeminiAPIKey string
	GeminiModel  string

	StagePolicy          string
	HistoryLimit         int
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	WorkerCount          int
	BannedTopics         []string

	AnalyticsWebhookURL string
	DatabaseURL         string

	RedisAddr     string
	RedisPassword string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		TelegramBotToken:      getEnv("TELEGRAM_BOT_TOKEN", "YOUR_TELEGRAM_BOT_TOKEN"),
		TelegramAPIBaseURL:    getEnv("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
		TelegramWebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", "YOUR_OPENAI_API_KEY"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4"),
		OpenAITimeout: getEnvAsDuration("OPENAI_TIMEOUT", 30*time.Second),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		StagePolicy:          strings.ToLower(strings.TrimSpace(getEnv("STAGE_POLICY", "turn"))),
		HistoryLimit:         getEnvAsInt("HISTORY_LIMIT", 10),
		SessionTTL:           getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		SessionSweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),
		BannedTopics:         getEnvAsList("BANNED_TOPICS"),

		AnalyticsWebhookURL: getEnv("ANALYTICS_WEBHOOK_URL", ""),
		DatabaseURL:         getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, dropping empty
// entries.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
