package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/openscribe/scribe-backend/internal/livesession"
)

func newTestServer(t *testing.T) (*httptest.Server, *livesession.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := livesession.NewStore(livesession.StoreConfig{Log: logger})
	t.Cleanup(store.Close)

	e := echo.New()
	handler := NewHandler(store, logger)
	handler.RegisterRoutes(e.Group("/v1"))

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestSnapshotReturnsSessionView(t *testing.T) {
	srv, store := newTestServer(t)
	store.CreateOrGet("rec_1")
	store.AddSegment("rec_1", livesession.Segment{SeqNo: 0, Transcript: "hello "})
	store.AddSegment("rec_1", livesession.Segment{SeqNo: 1, Transcript: "world"})

	resp, err := http.Get(srv.URL + "/v1/sessions/rec_1")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var view livesession.View
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Stitched != "hello world" {
		t.Errorf("stitched transcript = %q", view.Stitched)
	}
	if view.Status != livesession.StatusOpen {
		t.Errorf("status = %q", view.Status)
	}
}

func TestSnapshotUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/sessions/rec_missing")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSSEStreamDeliversEventsAndEndsOnFinal(t *testing.T) {
	srv, store := newTestServer(t)
	store.CreateOrGet("rec_1")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/sessions/rec_1/stream", nil)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	go func() {
		// Give the subscription a moment to register before mutating.
		time.Sleep(50 * time.Millisecond)
		store.AddSegment("rec_1", livesession.Segment{SeqNo: 0, Transcript: "partial"})
		store.SetStatus("rec_1", livesession.StatusFinalizing)
		store.SetFinalTranscript("rec_1", "the full transcript")
	}()

	var events []livesession.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev livesession.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		events = append(events, ev)
	}
	// The body ends when the handler returns, so reaching here means the
	// stream closed after the final event.

	if len(events) < 2 {
		t.Fatalf("got %d events, want at least segment + final", len(events))
	}
	last := events[len(events)-1]
	if last.Type != livesession.EventFinal {
		t.Errorf("last event type = %q, want final", last.Type)
	}
	if last.Transcript != "the full transcript" {
		t.Errorf("final transcript = %q", last.Transcript)
	}
}

func TestSSEStreamUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/sessions/rec_missing/stream", nil)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestWebSocketStreamDeliversEvents(t *testing.T) {
	srv, store := newTestServer(t)
	store.CreateOrGet("rec_1")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/rec_1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		store.AddSegment("rec_1", livesession.Segment{SeqNo: 0, Transcript: "hello"})
		store.SetStatus("rec_1", livesession.StatusFinalizing)
		store.SetFinalTranscript("rec_1", "hello there")
	}()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var final livesession.Event
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// Normal closure after the final event ends the loop.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			t.Fatalf("read: %v", err)
		}
		if err := json.Unmarshal(data, &final); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
	}

	if final.Type != livesession.EventFinal {
		t.Errorf("last event type = %q, want final", final.Type)
	}
	if final.Transcript != "hello there" {
		t.Errorf("final transcript = %q", final.Transcript)
	}
}

func TestSSEClientDisconnectUnsubscribes(t *testing.T) {
	srv, store := newTestServer(t)
	store.CreateOrGet("rec_1")

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/sessions/rec_1/stream", nil)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	cancel()

	// The session must remain collectable once the viewer is gone. Removal of
	// the subscriber happens in the handler's defer, so poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view, ok := store.Get("rec_1")
		if ok && view.SubscriberCount == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("subscriber still registered after client disconnect")
}
