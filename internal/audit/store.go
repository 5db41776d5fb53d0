// Package audit records ingestion and finalization outcomes in redis: daily
// counters for dashboards plus a short per-session trail for support debugging.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/openscribe/scribe-backend/internal/shared"
	"github.com/redis/go-redis/v9"
)

const (
	countersTTL = 7 * 24 * time.Hour
	trailTTL    = 24 * time.Hour
	trailLimit  = 200
)

type EventType string

const (
	EventSegmentAccepted   EventType = "segment_accepted"
	EventSegmentRejected   EventType = "segment_rejected"
	EventFinalizeStarted   EventType = "finalize_started"
	EventFinalizeCompleted EventType = "finalize_completed"
	EventFinalizeFailed    EventType = "finalize_failed"
)

type Record struct {
	SessionID string    `json:"session_id"`
	Type      EventType `json:"type"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

type Store struct {
	redis *redis.Client
	log   *slog.Logger
}

func NewStore(redisClient *redis.Client, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{redis: redisClient, log: log.With("component", "audit_store")}
}

func countersKey(day string) string {
	return "audit:counts:" + day
}

func trailKey(sessionID string) string {
	return "audit:session:" + sessionID
}

// Record bumps the daily counter for the event type and appends to the
// session's capped trail. Failures are storage errors the caller may log and
// ignore; auditing never gates ingestion.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return shared.StorageError("marshal audit record: %v", err)
	}

	day := rec.At.UTC().Format("2006-01-02")
	pipe := s.redis.Pipeline()
	pipe.HIncrBy(ctx, countersKey(day), string(rec.Type), 1)
	pipe.Expire(ctx, countersKey(day), countersTTL)
	pipe.LPush(ctx, trailKey(rec.SessionID), data)
	pipe.LTrim(ctx, trailKey(rec.SessionID), 0, trailLimit-1)
	pipe.Expire(ctx, trailKey(rec.SessionID), trailTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return shared.StorageError("write audit record: %v", err)
	}
	return nil
}

// Counts returns the event counters for a day (2006-01-02 format).
func (s *Store) Counts(ctx context.Context, day string) (map[EventType]int64, error) {
	data, err := s.redis.HGetAll(ctx, countersKey(day)).Result()
	if err != nil {
		return nil, shared.StorageError("read audit counters: %v", err)
	}

	counts := make(map[EventType]int64, len(data))
	for k, v := range data {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			counts[EventType(k)] = n
		}
	}
	return counts, nil
}

// Trail returns the session's recorded events, most recent first.
func (s *Store) Trail(ctx context.Context, sessionID string) ([]Record, error) {
	raw, err := s.redis.LRange(ctx, trailKey(sessionID), 0, trailLimit-1).Result()
	if err != nil {
		return nil, shared.StorageError("read audit trail: %v", err)
	}

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			s.log.Warn("skipping malformed audit record", "session_id", sessionID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
