package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/openscribe/scribe-backend/internal/livesession"
	"github.com/openscribe/scribe-backend/internal/transcription"
)

type Handler struct {
	store    *livesession.Store
	provider transcription.Provider
}

func NewHandler(store *livesession.Store, provider transcription.Provider) *Handler {
	return &Handler{store: store, provider: provider}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": string(h.provider.Kind()),
		"sessions": h.store.SessionCount(),
	})
}
