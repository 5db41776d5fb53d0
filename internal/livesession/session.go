package livesession

import (
	"sync"
	"time"

	"github.com/openscribe/scribe-backend/internal/shared"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusFinalizing Status = "finalizing"
	StatusCompleted  Status = "completed"
	StatusErrored    Status = "errored"
)

// Segment is one transcribed chunk of a recording. OverlapMs is carried for
// bookkeeping only; segment text is already deduplicated by the chunking policy.
type Segment struct {
	SeqNo      int    `json:"seq_no"`
	StartMs    int64  `json:"start_ms"`
	EndMs      int64  `json:"end_ms"`
	DurationMs int64  `json:"duration_ms"`
	OverlapMs  int64  `json:"overlap_ms"`
	Transcript string `json:"transcript"`
}

type EventType string

const (
	EventSegment EventType = "segment"
	EventFinal   EventType = "final"
	EventError   EventType = "error"
)

// Event is what subscribers receive. Segment events carry the full stitched
// transcript as of the update; final events carry the authoritative transcript.
type Event struct {
	Type       EventType               `json:"type"`
	SessionID  string                  `json:"session_id"`
	SeqNo      int                     `json:"seq_no,omitempty"`
	Transcript string                  `json:"transcript,omitempty"`
	Err        *shared.StructuredError `json:"error,omitempty"`
}

// View is a read-only snapshot of a session.
type View struct {
	ID              string    `json:"id"`
	Status          Status    `json:"status"`
	Stitched        string    `json:"stitched_transcript"`
	FinalTranscript string    `json:"final_transcript,omitempty"`
	SegmentCount    int       `json:"segment_count"`
	SubscriberCount int       `json:"subscriber_count"`
	CreatedAt       time.Time `json:"created_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
}

type subscriber struct {
	id string
	ch chan Event
}

type session struct {
	mu sync.Mutex

	id              string
	status          Status
	segments        map[int]Segment
	stitched        string
	finalTranscript string
	subscribers     map[string]*subscriber
	createdAt       time.Time
	lastActivityAt  time.Time
}

func (s *session) view() View {
	return View{
		ID:              s.id,
		Status:          s.status,
		Stitched:        s.stitched,
		FinalTranscript: s.finalTranscript,
		SegmentCount:    len(s.segments),
		SubscriberCount: len(s.subscribers),
		CreatedAt:       s.createdAt,
		LastActivityAt:  s.lastActivityAt,
	}
}
