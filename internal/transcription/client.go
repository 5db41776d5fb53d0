package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/openscribe/scribe-backend/internal/shared"
)

type httpProviderConfig struct {
	kind       Kind
	endpoint   string
	apiKey     string
	timeout    time.Duration
	retryLocal bool
	backoff    shared.BackoffConfig
}

// httpProvider speaks the OpenAI-compatible multipart transcription protocol
// that all three backend families expose.
type httpProvider struct {
	cfg    httpProviderConfig
	client *http.Client
}

func newHTTPProvider(cfg httpProviderConfig) *httpProvider {
	return &httpProvider{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (p *httpProvider) Kind() Kind {
	return p.cfg.kind
}

// Transcribe posts the audio and returns the transcript text. The local-server
// variants retry 503 and bare connection failures with the shared linear
// backoff; the hosted variant surfaces every failure immediately and leaves
// retry policy to the caller.
func (p *httpProvider) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	attempts := 1
	if p.cfg.retryLocal {
		attempts = p.cfg.backoff.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := p.transcribeOnce(ctx, audio, filename)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if attempt == attempts || !p.shouldRetry(err) {
			break
		}

		select {
		case <-time.After(p.cfg.backoff.Delay(attempt)):
		case <-ctx.Done():
			return "", shared.NetworkError("transcription cancelled: %v", ctx.Err())
		}
	}
	return "", lastErr
}

// shouldRetry gates the internal retry loop: only the conditions that mean the
// local server is transiently busy (warming up, not yet listening, slow).
func (p *httpProvider) shouldRetry(err error) bool {
	if !p.cfg.retryLocal {
		return false
	}
	se := shared.Coerce(err)
	return se.Code == shared.CodeServiceUnavailable || se.Code == shared.CodeNetwork
}

func (p *httpProvider) transcribeOnce(ctx context.Context, audio []byte, filename string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.timeout)
	defer cancel()

	body, contentType, err := buildMultipart(audio, filename)
	if err != nil {
		return "", shared.AssemblyError("build multipart request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.endpoint, body)
	if err != nil {
		return "", shared.AssemblyError("build request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	if p.cfg.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", shared.NetworkError("transcription timed out after %s", p.cfg.timeout)
		}
		return "", shared.NetworkError("transcription request failed: %v", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", shared.NetworkError("read transcription response: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var out struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(payload, &out); err != nil {
			return "", shared.APIError(resp.StatusCode, "malformed transcription response: %v", err)
		}
		return out.Text, nil
	case resp.StatusCode == http.StatusServiceUnavailable:
		return "", shared.ServiceUnavailable("transcription backend unavailable: %s", truncate(payload))
	default:
		return "", shared.APIError(resp.StatusCode, "transcription backend returned %d: %s",
			resp.StatusCode, truncate(payload))
	}
}

func buildMultipart(audio []byte, filename string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("model", "whisper-1"); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return fmt.Sprintf("%s... (%d bytes)", b[:max], len(b))
	}
	return string(b)
}
