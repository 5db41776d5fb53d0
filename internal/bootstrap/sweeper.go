package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/openscribe/scribe-backend/internal/livesession"
	"go.uber.org/fx"
)

// StartSweeper runs the session garbage collector on a fixed interval for the
// lifetime of the app. Sessions with live subscribers are never collected, so
// the sweep is safe to run while viewers are attached.
func StartSweeper(lc fx.Lifecycle, cfg *Config, store *livesession.Store, logger *slog.Logger) {
	interval := cfg.GCInterval
	if interval <= 0 {
		interval = livesession.DefaultGCInterval
	}

	done := make(chan struct{})
	var ticker *time.Ticker

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ticker = time.NewTicker(interval)
			go func() {
				for {
					select {
					case <-ticker.C:
						if removed := store.CollectGarbage(); removed > 0 {
							logger.Info("collected idle sessions", "count", removed)
						}
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			ticker.Stop()
			close(done)
			return nil
		},
	})
}

var SweeperModule = fx.Options(
	fx.Invoke(StartSweeper),
)
