package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/openscribe/scribe-backend/internal/livesession"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// WSViewerConn streams session events to one viewer over a WebSocket. Viewers
// never send payloads; the read pump only notices the client going away.
type WSViewerConn struct {
	ws        *websocket.Conn
	sessionID string
	logger    *slog.Logger
	done      chan struct{}
	mu        sync.Mutex
	closed    bool
}

func NewWSViewerConn(ws *websocket.Conn, sessionID string, logger *slog.Logger) *WSViewerConn {
	return &WSViewerConn{
		ws:        ws,
		sessionID: sessionID,
		logger:    logger.With("session_id", sessionID),
		done:      make(chan struct{}),
	}
}

func (c *WSViewerConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	return c.ws.Close()
}

func (c *WSViewerConn) readPump() {
	defer func() { _ = c.Close() }()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error", "error", err)
			}
			return
		}
	}
}

func (c *WSViewerConn) writePump(ctx context.Context, events <-chan livesession.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case ev, ok := <-events:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				c.logger.Error("failed to marshal event", "error", err)
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}
