package apikey

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/openscribe/scribe-backend/internal/shared"
)

// Handler manages keys for recording workstations. The routes are intended for
// the operator surface and sit behind the same auth middleware as ingestion.
type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.DELETE("/:id", h.Delete)
}

type keyResponse struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Prefix    string  `json:"prefix"`
	CreatedAt string  `json:"created_at"`
	ExpiresAt *string `json:"expires_at,omitempty"`
	LastUsed  *string `json:"last_used,omitempty"`
}

type createKeyRequest struct {
	Label     string `json:"label"`
	ExpiresIn *int   `json:"expires_in_days,omitempty"`
}

type createKeyResponse struct {
	keyResponse
	Secret string `json:"secret"`
}

func keyToResponse(k *APIKey) keyResponse {
	resp := keyResponse{
		ID:        k.ID,
		Label:     k.Label,
		Prefix:    k.Prefix,
		CreatedAt: k.CreatedAt.Format(time.RFC3339),
	}

	if k.ExpiresAt != nil {
		expiresAt := k.ExpiresAt.Format(time.RFC3339)
		resp.ExpiresAt = &expiresAt
	}
	if k.LastUsedAt != nil {
		lastUsed := k.LastUsedAt.Format(time.RFC3339)
		resp.LastUsed = &lastUsed
	}

	return resp
}

func (h *Handler) List(c echo.Context) error {
	keys, err := h.store.List(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to list API keys", "error", err)
		return shared.InternalError(shared.CodeStorage, "failed to list API keys")
	}

	response := make([]keyResponse, len(keys))
	for i, k := range keys {
		response[i] = keyToResponse(k)
	}

	return c.JSON(http.StatusOK, map[string][]keyResponse{"api_keys": response})
}

func (h *Handler) Create(c echo.Context) error {
	var req createKeyRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest(shared.CodeValidation, "invalid request body")
	}

	if req.Label == "" {
		return shared.BadRequest(shared.CodeValidation, "label is required")
	}

	key := &APIKey{Label: req.Label}
	if req.ExpiresIn != nil && *req.ExpiresIn > 0 {
		expiresAt := time.Now().AddDate(0, 0, *req.ExpiresIn)
		key.ExpiresAt = &expiresAt
	}

	secret, err := h.store.Create(c.Request().Context(), key)
	if err != nil {
		h.logger.Error("failed to create API key", "error", err)
		return shared.InternalError(shared.CodeStorage, "failed to create API key")
	}

	return c.JSON(http.StatusCreated, createKeyResponse{
		keyResponse: keyToResponse(key),
		Secret:      secret,
	})
}

func (h *Handler) Delete(c echo.Context) error {
	keyID := c.Param("id")

	if err := h.store.Delete(c.Request().Context(), keyID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFoundError(shared.CodeValidation, "API key not found")
		}
		h.logger.Error("failed to delete API key", "error", err, "key_id", keyID)
		return shared.InternalError(shared.CodeStorage, "failed to delete API key")
	}

	return c.NoContent(http.StatusNoContent)
}
