package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/openscribe/scribe-backend/internal/audit"
	"github.com/openscribe/scribe-backend/internal/livesession"
	"github.com/openscribe/scribe-backend/internal/shared"
	"github.com/openscribe/scribe-backend/internal/transcription"
)

// Finalizer reconciles a live session into its authoritative transcript: the
// full recording is re-transcribed in one pass and replaces the stitched
// segment text. A provider failure after retries marks the session errored.
type Finalizer struct {
	store    *livesession.Store
	provider transcription.Provider
	auditor  Auditor
	backoff  shared.BackoffConfig
	logger   *slog.Logger

	wg sync.WaitGroup
}

func NewFinalizer(store *livesession.Store, provider transcription.Provider, auditor Auditor, backoff shared.BackoffConfig, logger *slog.Logger) *Finalizer {
	return &Finalizer{
		store:    store,
		provider: provider,
		auditor:  auditor,
		backoff:  shared.NormalizeBackoff(backoff),
		logger:   logger.With("component", "finalizer"),
	}
}

// Start runs finalization in the background. The HTTP handler returns
// immediately; progress is observable through the session's event stream.
func (f *Finalizer) Start(sessionID string, audio []byte) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.finalize(sessionID, audio)
	}()
}

// Wait blocks until all in-flight finalizations have settled. Used by shutdown
// and by tests.
func (f *Finalizer) Wait() {
	f.wg.Wait()
}

func (f *Finalizer) finalize(sessionID string, audio []byte) {
	transcript, err := f.transcribeWithRetry(sessionID, audio)
	if err != nil {
		se := shared.Coerce(err)
		f.logger.Error("finalization failed", "session_id", sessionID, "error", se.Message)
		f.recordAudit(sessionID, audit.EventFinalizeFailed, se.Message)
		f.store.EmitError(sessionID, se, true)
		return
	}

	if err := f.store.SetFinalTranscript(sessionID, transcript); err != nil {
		f.logger.Error("could not install final transcript", "session_id", sessionID, "error", err)
		f.recordAudit(sessionID, audit.EventFinalizeFailed, err.Error())
		return
	}

	f.recordAudit(sessionID, audit.EventFinalizeCompleted, "")
	f.logger.Info("finalization completed", "session_id", sessionID, "chars", len(transcript))
}

func (f *Finalizer) transcribeWithRetry(sessionID string, audio []byte) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= f.backoff.MaxAttempts; attempt++ {
		transcript, err := f.provider.Transcribe(context.Background(), audio, "recording.wav")
		if err == nil {
			return transcript, nil
		}
		lastErr = err

		se := shared.Coerce(err)
		if !se.Recoverable {
			return "", err
		}

		f.logger.Warn("final transcription attempt failed",
			"session_id", sessionID, "attempt", attempt, "error", se.Message)
		if attempt < f.backoff.MaxAttempts {
			time.Sleep(f.backoff.Delay(attempt))
		}
	}
	return "", lastErr
}

func (f *Finalizer) recordAudit(sessionID string, typ audit.EventType, detail string) {
	if f.auditor == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.auditor.Record(ctx, audit.Record{SessionID: sessionID, Type: typ, Detail: detail}); err != nil {
		f.logger.Warn("audit write failed", "session_id", sessionID, "error", err)
	}
}
