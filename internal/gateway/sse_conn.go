package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/openscribe/scribe-backend/internal/livesession"
)

const sseKeepAliveInterval = 30 * time.Second

// SSEViewerConn streams session events to one viewer as server-sent events.
// The event channel closing (session finalized or errored) ends the stream.
type SSEViewerConn struct {
	writer    http.ResponseWriter
	flusher   http.Flusher
	sessionID string
	done      chan struct{}
	closeOnce sync.Once
}

func NewSSEViewerConn(w http.ResponseWriter, sessionID string) (*SSEViewerConn, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, http.ErrNotSupported
	}

	return &SSEViewerConn{
		writer:    w,
		flusher:   flusher,
		sessionID: sessionID,
		done:      make(chan struct{}),
	}, nil
}

func (c *SSEViewerConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *SSEViewerConn) Run(ctx context.Context, events <-chan livesession.Event) error {
	ticker := time.NewTicker(sseKeepAliveInterval)
	defer ticker.Stop()
	defer func() { _ = c.Close() }()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := c.writeEvent(ev); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.writeKeepAlive(); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		}
	}
}

func (c *SSEViewerConn) writeEvent(ev livesession.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if _, err := c.writer.Write([]byte("event: " + string(ev.Type) + "\n")); err != nil {
		return err
	}
	if _, err := c.writer.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := c.writer.Write(data); err != nil {
		return err
	}
	if _, err := c.writer.Write([]byte("\n\n")); err != nil {
		return err
	}

	c.flusher.Flush()
	return nil
}

func (c *SSEViewerConn) writeKeepAlive() error {
	if _, err := c.writer.Write([]byte(":keepalive\n\n")); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}
