package gateway

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/openscribe/scribe-backend/internal/livesession"
	"github.com/openscribe/scribe-backend/internal/shared"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler exposes the viewer surface: a JSON snapshot of a session and a live
// event stream over SSE or WebSocket.
type Handler struct {
	store  *livesession.Store
	logger *slog.Logger
}

func NewHandler(store *livesession.Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger.With("component", "stream_handler"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/sessions/:id", h.HandleSnapshot)
	g.GET("/sessions/:id/stream", h.HandleStream)
}

func (h *Handler) HandleSnapshot(c echo.Context) error {
	view, ok := h.store.Get(c.Param("id"))
	if !ok {
		return shared.NotFoundError(shared.CodeValidation, "session not found")
	}
	return c.JSON(http.StatusOK, view)
}

// HandleStream dispatches on the Accept header: event-stream clients get SSE,
// everything else is treated as a WebSocket upgrade.
func (h *Handler) HandleStream(c echo.Context) error {
	accept := c.Request().Header.Get("Accept")
	if !strings.Contains(accept, "text/event-stream") {
		return h.handleWebSocket(c)
	}

	return h.handleSSE(c)
}

func (h *Handler) handleSSE(c echo.Context) error {
	sessionID := c.Param("id")

	events, unsubscribe, err := h.store.Subscribe(sessionID)
	if err != nil {
		return shared.NotFoundError(shared.CodeValidation, "session not found")
	}
	defer unsubscribe()

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	conn, err := NewSSEViewerConn(c.Response(), sessionID)
	if err != nil {
		h.logger.Error("failed to create SSE connection", "error", err)
		return shared.InternalError(shared.CodeAssembly, "streaming unsupported")
	}

	h.logger.Info("viewer connected (SSE)", "session_id", sessionID)

	_ = conn.Run(c.Request().Context(), events)

	h.logger.Info("viewer disconnected (SSE)", "session_id", sessionID)
	return nil
}

func (h *Handler) handleWebSocket(c echo.Context) error {
	sessionID := c.Param("id")

	events, unsubscribe, err := h.store.Subscribe(sessionID)
	if err != nil {
		return shared.NotFoundError(shared.CodeValidation, "session not found")
	}
	defer unsubscribe()

	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	conn := NewWSViewerConn(ws, sessionID, h.logger)

	h.logger.Info("viewer connected (WebSocket)", "session_id", sessionID)

	go conn.readPump()
	conn.writePump(c.Request().Context(), events)

	h.logger.Info("viewer disconnected (WebSocket)", "session_id", sessionID)
	return nil
}
