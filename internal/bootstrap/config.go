package bootstrap

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	TranscriptionProvider string
	WhisperLocalURL       string
	MedASRLocalURL        string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	ProviderTimeout       time.Duration

	SessionTTL time.Duration
	GCInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseDSN   string
	RequireAPIKey bool
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		TranscriptionProvider: getEnv("TRANSCRIPTION_PROVIDER", ""),
		WhisperLocalURL:       getEnv("WHISPER_LOCAL_URL", ""),
		MedASRLocalURL:        getEnv("MEDASR_LOCAL_URL", ""),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		ProviderTimeout:       time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 15)) * time.Second,

		SessionTTL: time.Duration(getEnvInt("SESSION_TTL_MINUTES", 30)) * time.Minute,
		GCInterval: time.Duration(getEnvInt("GC_INTERVAL_MINUTES", 5)) * time.Minute,

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,

		DatabaseDSN:   getEnv("DATABASE_DSN", ""),
		RequireAPIKey: getEnv("REQUIRE_API_KEY", "false") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
