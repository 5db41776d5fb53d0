package bootstrap

import (
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/openscribe/scribe-backend/internal/apikey"
	"github.com/openscribe/scribe-backend/internal/audit"
	"github.com/openscribe/scribe-backend/internal/gateway"
	"github.com/openscribe/scribe-backend/internal/health"
	"github.com/openscribe/scribe-backend/internal/ingest"
	"github.com/openscribe/scribe-backend/internal/livesession"
	"github.com/openscribe/scribe-backend/internal/shared"
	"github.com/openscribe/scribe-backend/internal/transcription"
	"go.uber.org/fx"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideFinalizer(store *livesession.Store, provider transcription.Provider, auditStore *audit.Store, logger *slog.Logger) *ingest.Finalizer {
	return ingest.NewFinalizer(store, provider, auditStore, shared.BackoffConfig{}, logger)
}

func ProvideIngestHandler(store *livesession.Store, provider transcription.Provider, finalizer *ingest.Finalizer, auditStore *audit.Store, logger *slog.Logger) *ingest.Handler {
	return ingest.NewHandler(store, provider, finalizer, auditStore, logger)
}

func ProvideStreamHandler(store *livesession.Store, logger *slog.Logger) *gateway.Handler {
	return gateway.NewHandler(store, logger)
}

func ProvideAPIKeyHandler(store *apikey.Store, logger *slog.Logger) *apikey.Handler {
	if store == nil {
		return nil
	}
	return apikey.NewHandler(store, logger.With("handler", "apikey"))
}

func ProvideHealthHandler(store *livesession.Store, provider transcription.Provider) *health.Handler {
	return health.NewHandler(store, provider)
}

type HandlerParams struct {
	fx.In

	IngestHandler *ingest.Handler
	StreamHandler *gateway.Handler
	APIKeyHandler *apikey.Handler `optional:"true"`
	HealthHandler *health.Handler
	Authenticator *gateway.Authenticator
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/v1")
	api.Use(gateway.APIKeyAuth(params.Authenticator))
	api.Use(gateway.RateLimiter(gateway.DefaultRateLimiterConfig()))

	params.IngestHandler.RegisterRoutes(api)
	params.StreamHandler.RegisterRoutes(api)

	if params.APIKeyHandler != nil {
		params.APIKeyHandler.RegisterRoutes(api.Group("/apikeys"))
	}

	params.HealthHandler.RegisterRoutes(e)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideFinalizer,
		ProvideIngestHandler,
		ProvideStreamHandler,
		ProvideAPIKeyHandler,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterRoutes),
)
