package bootstrap

import (
	"github.com/openscribe/scribe-backend/internal/transcription"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ProvideRedisClient(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// ProvideDatabase opens postgres when a DSN is configured. A nil DB means the
// API-key surface is disabled, which is the default for single-workstation
// installs.
func ProvideDatabase(cfg *Config) (*gorm.DB, error) {
	if cfg.DatabaseDSN == "" {
		return nil, nil
	}
	return gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// ProvideTranscriptionProvider resolves the provider once at startup. A
// non-loopback plain-http endpoint is a fatal configuration error and stops
// the app here.
func ProvideTranscriptionProvider(cfg *Config) (transcription.Provider, error) {
	return transcription.New(transcription.Config{
		Provider:      cfg.TranscriptionProvider,
		WhisperURL:    cfg.WhisperLocalURL,
		MedASRURL:     cfg.MedASRLocalURL,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIKey:     cfg.OpenAIAPIKey,
		Timeout:       cfg.ProviderTimeout,
	})
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideRedisClient,
		ProvideDatabase,
		ProvideTranscriptionProvider,
	),
)
