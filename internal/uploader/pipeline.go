// Package uploader is the producing-side segment pipeline: a FIFO queue with a
// single in-flight upload per session, linear retry backoff, and terminal-drop
// semantics for segments the server will never accept.
package uploader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/openscribe/scribe-backend/internal/shared"
	"github.com/openscribe/scribe-backend/internal/wav"
)

// PendingUpload is one finalized audio window waiting for delivery. It lives
// from chunker handoff until terminal success or terminal failure.
type PendingUpload struct {
	SeqNo      int
	StartMs    int64
	EndMs      int64
	DurationMs int64
	OverlapMs  int64
	Audio      []byte

	Attempts int
	LastErr  error
}

// Sender delivers one segment; errors must be *shared.StructuredError values so
// the pipeline can read Recoverable.
type Sender interface {
	SendSegment(ctx context.Context, sessionID string, p *PendingUpload) error
}

type Pipeline struct {
	sessionID string
	sender    Sender
	backoff   shared.BackoffConfig
	log       *slog.Logger

	// onDrop reports a segment abandoned after validation failure or retry
	// exhaustion. The session continues with a gap.
	onDrop func(seqNo int, err *shared.StructuredError)

	mu      sync.Mutex
	queue   []*PendingUpload
	ctx     context.Context
	cancel  context.CancelFunc
	active  bool
	idle    chan struct{}
	dropped int
	sent    int
}

type PipelineConfig struct {
	SessionID string
	Sender    Sender
	Backoff   shared.BackoffConfig
	Log       *slog.Logger
	OnDrop    func(seqNo int, err *shared.StructuredError)
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		sessionID: cfg.SessionID,
		sender:    cfg.Sender,
		backoff:   shared.NormalizeBackoff(cfg.Backoff),
		log:       cfg.Log.With("component", "upload_pipeline", "session_id", cfg.SessionID),
		onDrop:    cfg.OnDrop,
		ctx:       ctx,
		cancel:    cancel,
		idle:      closedChan(),
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Enqueue appends a segment and starts the drain loop if it is not running.
// Segments drain strictly in enqueue order, one in flight at a time.
func (p *Pipeline) Enqueue(u *PendingUpload) {
	p.mu.Lock()
	p.queue = append(p.queue, u)
	start := !p.active
	if start {
		p.active = true
		p.idle = make(chan struct{})
	}
	p.mu.Unlock()

	if start {
		go p.drain()
	}
}

func (p *Pipeline) drain() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.active = false
			close(p.idle)
			p.mu.Unlock()
			return
		}
		u := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.deliver(u)
	}
}

func (p *Pipeline) deliver(u *PendingUpload) {
	// A malformed container is a misconfigured client, not a transient fault;
	// no attempt is ever sent.
	if _, err := wav.ValidateSegment(u.Audio); err != nil {
		p.drop(u, shared.Coerce(err))
		return
	}

	for u.Attempts < p.backoff.MaxAttempts {
		u.Attempts++
		err := p.sender.SendSegment(p.ctx, p.sessionID, u)
		if err == nil {
			p.mu.Lock()
			p.sent++
			p.mu.Unlock()
			p.log.Debug("segment uploaded", "seq_no", u.SeqNo, "attempts", u.Attempts)
			return
		}
		u.LastErr = err

		se := shared.Coerce(err)
		if !se.Recoverable {
			p.drop(u, se)
			return
		}
		if u.Attempts >= p.backoff.MaxAttempts {
			break
		}

		p.log.Warn("segment upload failed, retrying",
			"seq_no", u.SeqNo, "attempt", u.Attempts, "error", se.Message)
		select {
		case <-time.After(p.backoff.Delay(u.Attempts)):
		case <-p.ctx.Done():
			p.drop(u, shared.NetworkError("upload cancelled"))
			return
		}
	}

	p.drop(u, shared.Coerce(u.LastErr))
}

func (p *Pipeline) drop(u *PendingUpload, se *shared.StructuredError) {
	p.mu.Lock()
	p.dropped++
	p.mu.Unlock()

	p.log.Warn("segment dropped",
		"seq_no", u.SeqNo, "attempts", u.Attempts, "code", se.Code, "error", se.Message)
	if p.onDrop != nil {
		p.onDrop(u.SeqNo, se)
	}
}

// Wait blocks until the queue is fully drained or the context ends. Called
// before uploading the final recording so segment order is settled.
func (p *Pipeline) Wait(ctx context.Context) error {
	for {
		p.mu.Lock()
		idle := p.idle
		pending := p.active || len(p.queue) > 0
		p.mu.Unlock()

		if !pending {
			return nil
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats returns delivered and dropped counts.
func (p *Pipeline) Stats() (sent, dropped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent, p.dropped
}

// Close cancels in-flight work and discards anything still queued.
func (p *Pipeline) Close() {
	p.cancel()
	p.mu.Lock()
	p.queue = nil
	p.mu.Unlock()
}
