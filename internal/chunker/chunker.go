// Package chunker windows a live PCM stream into fixed-duration, overlapping
// audio segments for the upload pipeline. The overlap gives the provider
// context across window boundaries; dedupe is the chunking policy's concern,
// not the server's.
package chunker

import (
	"github.com/openscribe/scribe-backend/internal/shared"
	"github.com/openscribe/scribe-backend/internal/uploader"
	"github.com/openscribe/scribe-backend/internal/wav"
)

const (
	DefaultWindowMs  = 10000
	DefaultOverlapMs = 2000
)

// Chunker accumulates mono 16 kHz samples and emits a PendingUpload every time
// a full window completes. Not safe for concurrent use; feed it from the single
// capture goroutine.
type Chunker struct {
	windowMs  int64
	overlapMs int64
	emit      func(*uploader.PendingUpload)

	buf     []int16
	seq     int
	startMs int64
}

type Config struct {
	WindowMs  int64
	OverlapMs int64
	Emit      func(*uploader.PendingUpload)
}

func New(cfg Config) (*Chunker, error) {
	if cfg.WindowMs <= 0 {
		cfg.WindowMs = DefaultWindowMs
	}
	if cfg.OverlapMs < 0 {
		cfg.OverlapMs = 0
	}
	if cfg.OverlapMs == 0 {
		cfg.OverlapMs = DefaultOverlapMs
	}
	if cfg.WindowMs < wav.MinSegmentDurationMs || cfg.WindowMs > wav.MaxSegmentDurationMs {
		return nil, shared.ConfigurationError("window %dms outside ingestible %d-%dms bounds",
			cfg.WindowMs, wav.MinSegmentDurationMs, wav.MaxSegmentDurationMs)
	}
	if cfg.OverlapMs >= cfg.WindowMs {
		return nil, shared.ConfigurationError("overlap %dms must be shorter than window %dms",
			cfg.OverlapMs, cfg.WindowMs)
	}
	if cfg.Emit == nil {
		return nil, shared.ConfigurationError("chunker requires an emit callback")
	}
	return &Chunker{
		windowMs:  cfg.WindowMs,
		overlapMs: cfg.OverlapMs,
		emit:      cfg.Emit,
	}, nil
}

// Write appends captured samples and emits every window that completes.
func (c *Chunker) Write(samples []int16) {
	c.buf = append(c.buf, samples...)

	windowSamples := wav.SamplesForMs(c.windowMs)
	strideSamples := wav.SamplesForMs(c.windowMs - c.overlapMs)

	for len(c.buf) >= windowSamples {
		c.emitWindow(c.buf[:windowSamples])
		c.buf = c.buf[strideSamples:]
		c.startMs += c.windowMs - c.overlapMs
	}
}

func (c *Chunker) emitWindow(window []int16) {
	overlap := c.overlapMs
	if c.seq == 0 {
		overlap = 0
	}
	c.emit(&uploader.PendingUpload{
		SeqNo:      c.seq,
		StartMs:    c.startMs,
		EndMs:      c.startMs + c.windowMs,
		DurationMs: c.windowMs,
		OverlapMs:  overlap,
		Audio:      wav.Encode(window),
	})
	c.seq++
}

// Flush discards any partial tail window. Anything shorter than the minimum
// segment duration would be rejected at ingestion, and the full-recording
// finalization covers the tail authoritatively.
func (c *Chunker) Flush() {
	c.buf = nil
}

// Emitted returns how many segments have been produced so far.
func (c *Chunker) Emitted() int {
	return c.seq
}
