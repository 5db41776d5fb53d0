package transcription

import (
	"context"
	"time"

	"github.com/openscribe/scribe-backend/internal/shared"
)

// Kind is the closed set of provider families. Resolution happens once at
// configuration time; nothing re-parses provider strings per call.
type Kind string

const (
	// KindWhisperLocal is the locally hosted fast/cheap model, the default for
	// cost and privacy.
	KindWhisperLocal Kind = "whisper-local"
	// KindMedASRLocal is the locally hosted medical-domain model.
	KindMedASRLocal Kind = "medasr-local"
	// KindOpenAI is the hosted commercial API.
	KindOpenAI Kind = "openai"
)

// Provider is the uniform contract over the three backend families. Failures
// are always *shared.StructuredError values.
type Provider interface {
	Kind() Kind
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

type Config struct {
	// Provider selects the backend family; empty defaults to whisper-local.
	// Matching is case-insensitive and accepts aliases.
	Provider string

	WhisperURL string
	MedASRURL  string

	OpenAIBaseURL string
	OpenAIKey     string

	// Timeout bounds each transcription call.
	Timeout time.Duration

	// Backoff drives the local-server retry schedule (503 / connection
	// failure). The hosted variant never retries internally.
	Backoff shared.BackoffConfig
}

const (
	DefaultWhisperURL = "http://127.0.0.1:8002"
	DefaultMedASRURL  = "http://127.0.0.1:8001"
	DefaultOpenAIURL  = "https://api.openai.com"

	DefaultTimeout = 15 * time.Second

	transcriptionsPath = "/v1/audio/transcriptions"
)
