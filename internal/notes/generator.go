// Package notes hands completed transcripts to a downstream note generator.
// The server treats generation as an opaque collaborator: it only guarantees
// the generator sees each final transcript exactly once.
package notes

import (
	"context"
	"log/slog"
)

type Generator interface {
	Generate(ctx context.Context, sessionID, transcript string) error
}

// NoopGenerator is bound when no note backend is configured.
type NoopGenerator struct {
	logger *slog.Logger
}

func NewNoopGenerator(logger *slog.Logger) *NoopGenerator {
	return &NoopGenerator{logger: logger.With("component", "notes")}
}

func (g *NoopGenerator) Generate(_ context.Context, sessionID string, transcript string) error {
	g.logger.Info("final transcript ready, no note backend configured",
		"session_id", sessionID, "chars", len(transcript))
	return nil
}
