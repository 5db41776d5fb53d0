package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/openscribe/scribe-backend/internal/shared"
)

// Client posts segments and final recordings to the ingestion endpoints and
// classifies responses into the shared error taxonomy so the pipeline can make
// retry decisions off the Recoverable flag alone.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{},
	}
}

func (c *Client) SendSegment(ctx context.Context, sessionID string, p *PendingUpload) error {
	fields := map[string]string{
		"seq_no":      strconv.Itoa(p.SeqNo),
		"start_ms":    strconv.FormatInt(p.StartMs, 10),
		"end_ms":      strconv.FormatInt(p.EndMs, 10),
		"duration_ms": strconv.FormatInt(p.DurationMs, 10),
		"overlap_ms":  strconv.FormatInt(p.OverlapMs, 10),
	}
	url := fmt.Sprintf("%s/v1/sessions/%s/segments", c.baseURL, sessionID)
	filename := fmt.Sprintf("segment-%d.wav", p.SeqNo)
	return c.post(ctx, url, fields, filename, p.Audio)
}

func (c *Client) SendFinal(ctx context.Context, sessionID string, audio []byte) error {
	url := fmt.Sprintf("%s/v1/sessions/%s/final", c.baseURL, sessionID)
	return c.post(ctx, url, nil, "recording.wav", audio)
}

func (c *Client) post(ctx context.Context, url string, fields map[string]string, filename string, audio []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return shared.AssemblyError("write field %s: %v", k, err)
		}
	}
	part, err := w.CreateFormFile("audio", filename)
	if err != nil {
		return shared.AssemblyError("create form file: %v", err)
	}
	if _, err := part.Write(audio); err != nil {
		return shared.AssemblyError("write audio: %v", err)
	}
	if err := w.Close(); err != nil {
		return shared.AssemblyError("close multipart: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return shared.AssemblyError("build request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return shared.NetworkError("ingestion request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	return classifyStatus(resp.StatusCode, body)
}

// classifyStatus implements the upload retry contract: 2xx success; 408, 425,
// 429 and all 5xx retryable; every other 4xx a terminal rejection.
func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusRequestTimeout,
		status == http.StatusTooEarly,
		status == http.StatusTooManyRequests,
		status >= 500:
		return &shared.StructuredError{
			Code:        shared.CodeAPI,
			Message:     fmt.Sprintf("ingestion returned %d: %s", status, body),
			Recoverable: true,
		}
	default:
		return &shared.StructuredError{
			Code:        shared.CodeAPI,
			Message:     fmt.Sprintf("ingestion rejected request with %d: %s", status, body),
			Recoverable: false,
		}
	}
}
