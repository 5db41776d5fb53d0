package livesession

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openscribe/scribe-backend/internal/shared"
)

const (
	DefaultTTL        = 30 * time.Minute
	DefaultGCInterval = 5 * time.Minute

	// Per-subscriber outbound buffer. A subscriber that falls this far behind
	// starts losing intermediate segment events; it still holds the latest
	// stitched state on the next event it does receive.
	subscriberBuffer = 128
)

// Store is the single source of truth for in-flight transcription sessions.
// Each session serializes its own mutations; sessions never block each other.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	ttl     time.Duration
	log     *slog.Logger
	now     func() time.Time
	onFinal func(sessionID, transcript string)
}

type StoreConfig struct {
	TTL time.Duration
	Log *slog.Logger

	// OnFinal runs asynchronously after a session completes, feeding the
	// authoritative transcript to the note-generation consumer.
	OnFinal func(sessionID, transcript string)
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*session),
		ttl:      cfg.TTL,
		log:      cfg.Log.With("component", "livesession_store"),
		now:      time.Now,
		onFinal:  cfg.OnFinal,
	}
}

// CreateOrGet is idempotent: it returns the existing session or creates one in
// the open state.
func (st *Store) CreateOrGet(sessionID string) View {
	st.mu.Lock()
	s, ok := st.sessions[sessionID]
	if !ok {
		now := st.now()
		s = &session{
			id:             sessionID,
			status:         StatusOpen,
			segments:       make(map[int]Segment),
			subscribers:    make(map[string]*subscriber),
			createdAt:      now,
			lastActivityAt: now,
		}
		st.sessions[sessionID] = s
		st.log.Info("session created", "session_id", sessionID)
	}
	st.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

func (st *Store) Get(sessionID string) (View, bool) {
	st.mu.RLock()
	s, ok := st.sessions[sessionID]
	st.mu.RUnlock()
	if !ok {
		return View{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), true
}

func (st *Store) get(sessionID string) (*session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[sessionID]
	return s, ok
}

// AddSegment folds a transcribed segment into the session and notifies
// subscribers with the recomputed stitched transcript. Re-adding an identical
// segment is a no-op; a conflicting transcript for a known seqNo is rejected
// without touching the stored text. Both rejection cases leave the session open.
func (st *Store) AddSegment(sessionID string, seg Segment) error {
	s, ok := st.get(sessionID)
	if !ok {
		return shared.StorageError("unknown session %s", sessionID)
	}

	s.mu.Lock()
	if s.status != StatusOpen {
		se := shared.ValidationError("session is %s, segments are only accepted while open", s.status)
		st.notifyLocked(s, Event{Type: EventError, SessionID: sessionID, SeqNo: seg.SeqNo, Err: se})
		s.mu.Unlock()
		return se
	}

	if existing, dup := s.segments[seg.SeqNo]; dup {
		if existing.Transcript == seg.Transcript {
			// At-least-once delivery from the upload pipeline; nothing to do.
			s.mu.Unlock()
			return nil
		}
		se := shared.ValidationError("seq_no %d already present with different transcript", seg.SeqNo)
		st.notifyLocked(s, Event{Type: EventError, SessionID: sessionID, SeqNo: seg.SeqNo, Err: se})
		s.mu.Unlock()
		return se
	}

	s.segments[seg.SeqNo] = seg
	s.stitched = stitch(s.segments)
	s.lastActivityAt = st.now()
	st.notifyLocked(s, Event{Type: EventSegment, SessionID: sessionID, SeqNo: seg.SeqNo, Transcript: s.stitched})
	s.mu.Unlock()

	st.log.Debug("segment stored", "session_id", sessionID, "seq_no", seg.SeqNo)
	return nil
}

// stitch concatenates present segments in ascending seqNo order. Gaps are
// skipped: a missing segment simply delays that portion of the text, and a
// permanently missing one leaves a permanent gap (no server-side backfill).
// Providers carry their own spacing, so nothing is inserted between parts.
func stitch(segments map[int]Segment) string {
	seqs := make([]int, 0, len(segments))
	for seq := range segments {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)

	var b strings.Builder
	for _, seq := range seqs {
		b.WriteString(segments[seq].Transcript)
	}
	return b.String()
}

// SetStatus applies the open -> finalizing transition. Invalid transitions are
// reported, not fatal.
func (st *Store) SetStatus(sessionID string, status Status) error {
	s, ok := st.get(sessionID)
	if !ok {
		return shared.StorageError("unknown session %s", sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !validTransition(s.status, status) {
		st.log.Warn("invalid status transition",
			"session_id", sessionID, "from", s.status, "to", status)
		return shared.ValidationError("cannot transition from %s to %s", s.status, status)
	}
	s.status = status
	s.lastActivityAt = st.now()
	return nil
}

func validTransition(from, to Status) bool {
	switch to {
	case StatusFinalizing:
		return from == StatusOpen
	case StatusErrored:
		return from == StatusOpen || from == StatusFinalizing
	default:
		// completed is reached only through SetFinalTranscript; there is no
		// way back to open.
		return false
	}
}

// SetFinalTranscript installs the authoritative transcript, completes the
// session, and emits the final event. The final event is the last event a
// subscriber receives: every subscriber channel is closed afterwards.
func (st *Store) SetFinalTranscript(sessionID, transcript string) error {
	s, ok := st.get(sessionID)
	if !ok {
		return shared.StorageError("unknown session %s", sessionID)
	}

	s.mu.Lock()
	if s.status != StatusFinalizing {
		s.mu.Unlock()
		return shared.ValidationError("final transcript requires finalizing status, session is %s", s.status)
	}
	s.finalTranscript = transcript
	s.status = StatusCompleted
	s.lastActivityAt = st.now()
	st.notifyLocked(s, Event{Type: EventFinal, SessionID: sessionID, Transcript: transcript})
	st.closeSubscribersLocked(s)
	s.mu.Unlock()

	st.log.Info("session completed", "session_id", sessionID, "chars", len(transcript))

	if st.onFinal != nil {
		go st.onFinal(sessionID, transcript)
	}
	return nil
}

// EmitError surfaces a structured error to subscribers. Fatal errors end the
// session's transcription purpose; non-fatal ones (a dropped segment, a
// rejected duplicate) leave the status untouched.
func (st *Store) EmitError(sessionID string, se *shared.StructuredError, fatal bool) {
	s, ok := st.get(sessionID)
	if !ok {
		st.log.Warn("error for unknown session", "session_id", sessionID, "error", se.Message)
		return
	}

	s.mu.Lock()
	if fatal && (s.status == StatusOpen || s.status == StatusFinalizing) {
		s.status = StatusErrored
	}
	s.lastActivityAt = st.now()
	st.notifyLocked(s, Event{Type: EventError, SessionID: sessionID, Err: se})
	if fatal {
		st.closeSubscribersLocked(s)
	}
	s.mu.Unlock()

	st.log.Warn("session error emitted",
		"session_id", sessionID, "code", se.Code, "fatal", fatal, "recoverable", se.Recoverable)
}

// Subscribe registers a viewer and returns its event channel plus an
// unsubscribe function that is safe to call more than once. The channel is
// closed on unsubscribe and on session completion or fatal error.
func (st *Store) Subscribe(sessionID string) (<-chan Event, func(), error) {
	s, ok := st.get(sessionID)
	if !ok {
		return nil, nil, shared.StorageError("unknown session %s", sessionID)
	}

	sub := &subscriber{
		id: shared.NewID("sub_"),
		ch: make(chan Event, subscriberBuffer),
	}

	s.mu.Lock()
	s.subscribers[sub.id] = sub
	s.lastActivityAt = st.now()

	// Late subscribers immediately see the current state instead of waiting
	// for the next mutation.
	switch s.status {
	case StatusCompleted:
		sub.ch <- Event{Type: EventFinal, SessionID: sessionID, Transcript: s.finalTranscript}
	default:
		if s.stitched != "" {
			sub.ch <- Event{Type: EventSegment, SessionID: sessionID, Transcript: s.stitched}
		}
	}
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		if _, live := s.subscribers[sub.id]; live {
			delete(s.subscribers, sub.id)
			close(sub.ch)
			s.lastActivityAt = st.now()
		}
		s.mu.Unlock()
	}

	st.log.Debug("subscriber registered", "session_id", sessionID, "subscriber_id", sub.id)
	return sub.ch, unsubscribe, nil
}

// notifyLocked fans an event out to every subscriber without blocking the
// mutation path. Callers hold s.mu.
func (st *Store) notifyLocked(s *session, evt Event) {
	for _, sub := range s.subscribers {
		select {
		case sub.ch <- evt:
		default:
			st.log.Warn("subscriber buffer full, dropping event",
				"session_id", s.id, "subscriber_id", sub.id, "event", evt.Type)
		}
	}
}

func (st *Store) closeSubscribersLocked(s *session) {
	for id, sub := range s.subscribers {
		close(sub.ch)
		delete(s.subscribers, id)
	}
}

// CollectGarbage removes sessions idle past the TTL with no live subscribers.
// A session with a subscriber is never collected, whatever its age. Returns the
// number of sessions removed.
func (st *Store) CollectGarbage() int {
	st.mu.RLock()
	candidates := make([]*session, 0, len(st.sessions))
	for _, s := range st.sessions {
		candidates = append(candidates, s)
	}
	st.mu.RUnlock()

	cutoff := st.now().Add(-st.ttl)
	removed := 0
	for _, s := range candidates {
		s.mu.Lock()
		expired := len(s.subscribers) == 0 && s.lastActivityAt.Before(cutoff)
		s.mu.Unlock()
		if !expired {
			continue
		}

		st.mu.Lock()
		// Re-check under the registry lock; a subscriber may have arrived.
		s.mu.Lock()
		if len(s.subscribers) == 0 && s.lastActivityAt.Before(cutoff) {
			delete(st.sessions, s.id)
			removed++
			st.log.Info("session garbage collected",
				"session_id", s.id, "status", s.status, "idle", st.now().Sub(s.lastActivityAt))
		}
		s.mu.Unlock()
		st.mu.Unlock()
	}
	return removed
}

func (st *Store) SessionCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Close closes every subscriber channel. Used on shutdown.
func (st *Store) Close() {
	st.mu.Lock()
	sessions := make([]*session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.sessions = make(map[string]*session)
	st.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		st.closeSubscribersLocked(s)
		s.mu.Unlock()
	}
}
