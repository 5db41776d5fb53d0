// Package ingest receives audio from recording clients: per-segment uploads
// while the session is live, and the full recording at finalization.
package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/openscribe/scribe-backend/internal/audit"
	"github.com/openscribe/scribe-backend/internal/livesession"
	"github.com/openscribe/scribe-backend/internal/shared"
	"github.com/openscribe/scribe-backend/internal/transcription"
	"github.com/openscribe/scribe-backend/internal/wav"
)

// maxUploadBytes caps a single upload. Twelve seconds of 16 kHz mono 16-bit
// audio is under 400 KiB; full recordings run larger.
const maxUploadBytes = 256 << 20

// Auditor is the slice of the audit store the handlers need. Nil disables
// auditing without branching at every call site.
type Auditor interface {
	Record(ctx context.Context, rec audit.Record) error
}

type Handler struct {
	store     *livesession.Store
	provider  transcription.Provider
	finalizer *Finalizer
	auditor   Auditor
	logger    *slog.Logger
}

func NewHandler(store *livesession.Store, provider transcription.Provider, finalizer *Finalizer, auditor Auditor, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		provider:  provider,
		finalizer: finalizer,
		auditor:   auditor,
		logger:    logger.With("component", "ingest_handler"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/sessions/:id/segments", h.HandleSegment)
	g.POST("/sessions/:id/final", h.HandleFinal)
}

type segmentResponse struct {
	SessionID  string `json:"session_id"`
	SeqNo      int    `json:"seq_no"`
	Transcript string `json:"transcript"`
}

// HandleSegment transcribes one uploaded segment and folds it into the
// session. The session is created on first contact, so clients never issue a
// separate create call.
func (h *Handler) HandleSegment(c echo.Context) error {
	sessionID := c.Param("id")

	seg, audio, err := h.parseSegmentForm(c)
	if err != nil {
		h.recordAudit(sessionID, audit.EventSegmentRejected, err.Error())
		return shared.Coerce(err).ToHTTP()
	}

	if _, err := wav.ValidateSegment(audio); err != nil {
		h.recordAudit(sessionID, audit.EventSegmentRejected, err.Error())
		return shared.Coerce(err).ToHTTP()
	}

	text, err := h.provider.Transcribe(c.Request().Context(), audio, "segment-"+strconv.Itoa(seg.SeqNo)+".wav")
	if err != nil {
		h.logger.Error("segment transcription failed",
			"session_id", sessionID, "seq_no", seg.SeqNo, "error", err)
		h.recordAudit(sessionID, audit.EventSegmentRejected, err.Error())
		return shared.Coerce(err).ToHTTP()
	}
	seg.Transcript = text

	h.store.CreateOrGet(sessionID)
	if err := h.store.AddSegment(sessionID, seg); err != nil {
		h.recordAudit(sessionID, audit.EventSegmentRejected, err.Error())
		return shared.Coerce(err).ToHTTP()
	}

	h.recordAudit(sessionID, audit.EventSegmentAccepted, "")

	return c.JSON(http.StatusAccepted, segmentResponse{
		SessionID:  sessionID,
		SeqNo:      seg.SeqNo,
		Transcript: text,
	})
}

// HandleFinal kicks off finalization: the session moves to finalizing
// synchronously, the full-recording re-transcription runs in the background.
func (h *Handler) HandleFinal(c echo.Context) error {
	sessionID := c.Param("id")

	audio, err := readUpload(c)
	if err != nil {
		return shared.Coerce(err).ToHTTP()
	}

	if _, err := wav.ValidateRecording(audio); err != nil {
		return shared.Coerce(err).ToHTTP()
	}

	if _, ok := h.store.Get(sessionID); !ok {
		return shared.NotFoundError(shared.CodeValidation, "session not found")
	}

	if err := h.store.SetStatus(sessionID, livesession.StatusFinalizing); err != nil {
		return shared.ConflictError(shared.CodeValidation, err.Error())
	}

	h.recordAudit(sessionID, audit.EventFinalizeStarted, "")
	h.finalizer.Start(sessionID, audio)

	return c.JSON(http.StatusAccepted, map[string]string{
		"session_id": sessionID,
		"status":     string(livesession.StatusFinalizing),
	})
}

func (h *Handler) parseSegmentForm(c echo.Context) (livesession.Segment, []byte, error) {
	seqNo, err := formInt(c, "seq_no")
	if err != nil {
		return livesession.Segment{}, nil, err
	}
	if seqNo < 0 {
		return livesession.Segment{}, nil, shared.ValidationError("seq_no must be non-negative")
	}

	seg := livesession.Segment{SeqNo: int(seqNo)}
	for _, field := range []struct {
		name string
		dst  *int64
	}{
		{"start_ms", &seg.StartMs},
		{"end_ms", &seg.EndMs},
		{"duration_ms", &seg.DurationMs},
		{"overlap_ms", &seg.OverlapMs},
	} {
		v, err := formInt(c, field.name)
		if err != nil {
			return livesession.Segment{}, nil, err
		}
		*field.dst = v
	}

	audio, err := readUpload(c)
	if err != nil {
		return livesession.Segment{}, nil, err
	}
	return seg, audio, nil
}

func formInt(c echo.Context, name string) (int64, error) {
	raw := c.FormValue(name)
	if raw == "" {
		return 0, shared.ValidationError("missing form field %s", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, shared.ValidationError("field %s is not an integer", name)
	}
	return v, nil
}

func readUpload(c echo.Context) ([]byte, error) {
	fh, err := c.FormFile("audio")
	if err != nil {
		return nil, shared.ValidationError("missing audio file")
	}
	if fh.Size > maxUploadBytes {
		return nil, shared.ValidationError("audio upload exceeds %d bytes", maxUploadBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, shared.ValidationError("unreadable audio file: %v", err)
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		return nil, shared.ValidationError("unreadable audio file: %v", err)
	}
	return audio, nil
}

func (h *Handler) recordAudit(sessionID string, typ audit.EventType, detail string) {
	if h.auditor == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.auditor.Record(ctx, audit.Record{SessionID: sessionID, Type: typ, Detail: detail}); err != nil {
		h.logger.Warn("audit write failed", "session_id", sessionID, "error", err)
	}
}
