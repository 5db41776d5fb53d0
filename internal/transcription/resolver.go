package transcription

import (
	"net"
	"net/url"
	"strings"

	"github.com/openscribe/scribe-backend/internal/shared"
)

// ResolveKind normalizes the configured provider value to a Kind.
func ResolveKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "whisper", "whisper-local", "whisper_local", "local", "fast":
		return KindWhisperLocal, nil
	case "medasr", "medasr-local", "medasr_local", "medical", "med":
		return KindMedASRLocal, nil
	case "openai", "whisper-api", "hosted", "api":
		return KindOpenAI, nil
	default:
		return "", shared.ConfigurationError("unknown transcription provider %q", raw)
	}
}

// New resolves configuration to a concrete provider. Endpoint safety is checked
// here, before any audio is sent: a remote endpoint on plain http is a fatal
// configuration error; loopback endpoints are exempt.
func New(cfg Config) (Provider, error) {
	kind, err := ResolveKind(cfg.Provider)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Backoff = shared.NormalizeBackoff(cfg.Backoff)

	var base, apiKey string
	retryLocal := false

	switch kind {
	case KindWhisperLocal:
		base = cfg.WhisperURL
		if base == "" {
			base = DefaultWhisperURL
		}
		retryLocal = true
	case KindMedASRLocal:
		base = cfg.MedASRURL
		if base == "" {
			base = DefaultMedASRURL
		}
		retryLocal = true
	case KindOpenAI:
		base = cfg.OpenAIBaseURL
		if base == "" {
			base = DefaultOpenAIURL
		}
		if cfg.OpenAIKey == "" {
			return nil, shared.ConfigurationError("openai provider requires an API key")
		}
		apiKey = cfg.OpenAIKey
	}

	if err := checkEndpoint(base); err != nil {
		return nil, err
	}

	return newHTTPProvider(httpProviderConfig{
		kind:       kind,
		endpoint:   strings.TrimRight(base, "/") + transcriptionsPath,
		apiKey:     apiKey,
		timeout:    cfg.Timeout,
		retryLocal: retryLocal,
		backoff:    cfg.Backoff,
	}), nil
}

func checkEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return shared.ConfigurationError("invalid endpoint %q: %v", raw, err)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if isLoopback(u.Hostname()) {
			return nil
		}
		return shared.ConfigurationError("remote endpoint %q must use https", raw)
	default:
		return shared.ConfigurationError("endpoint %q has unsupported scheme %q", raw, u.Scheme)
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
