package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/openscribe/scribe-backend/internal/apikey"
	"github.com/openscribe/scribe-backend/internal/audit"
	"github.com/openscribe/scribe-backend/internal/gateway"
	"github.com/openscribe/scribe-backend/internal/livesession"
	"github.com/openscribe/scribe-backend/internal/notes"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideNoteGenerator(logger *slog.Logger) notes.Generator {
	return notes.NewNoopGenerator(logger)
}

func ProvideSessionStore(lc fx.Lifecycle, cfg *Config, logger *slog.Logger, generator notes.Generator) *livesession.Store {
	store := livesession.NewStore(livesession.StoreConfig{
		TTL: cfg.SessionTTL,
		Log: logger,
		OnFinal: func(sessionID, transcript string) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := generator.Generate(ctx, sessionID, transcript); err != nil {
				logger.Error("note generation failed", "session_id", sessionID, "error", err)
			}
		},
	})

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			store.Close()
			return nil
		},
	})
	return store
}

func ProvideAPIKeyStore(db *gorm.DB) *apikey.Store {
	if db == nil {
		return nil
	}
	return apikey.NewStore(db)
}

func ProvideAuditStore(redisClient *redis.Client, logger *slog.Logger) *audit.Store {
	return audit.NewStore(redisClient, logger)
}

func ProvideAuthenticator(cfg *Config, store *apikey.Store) *gateway.Authenticator {
	if !cfg.RequireAPIKey || store == nil {
		return gateway.NewAuthenticator(nil)
	}
	return gateway.NewAuthenticator(store)
}

func RunMigrations(store *apikey.Store) error {
	if store == nil {
		return nil
	}
	return store.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideNoteGenerator,
		ProvideSessionStore,
		ProvideAPIKeyStore,
		ProvideAuditStore,
		ProvideAuthenticator,
	),
	fx.Invoke(RunMigrations),
)
