package chunker

import (
	"testing"

	"github.com/openscribe/scribe-backend/internal/uploader"
	"github.com/openscribe/scribe-backend/internal/wav"
)

func collect() (*[]*uploader.PendingUpload, func(*uploader.PendingUpload)) {
	var out []*uploader.PendingUpload
	return &out, func(u *uploader.PendingUpload) { out = append(out, u) }
}

func TestWindowing(t *testing.T) {
	out, emit := collect()
	c, err := New(Config{Emit: emit})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	// 26s of audio fed in uneven slices: windows at 0-10s, 8-18s, 16-26s.
	total := wav.SamplesForMs(26000)
	fed := 0
	for fed < total {
		n := wav.SamplesForMs(3000)
		if fed+n > total {
			n = total - fed
		}
		c.Write(make([]int16, n))
		fed += n
	}

	if len(*out) != 3 {
		t.Fatalf("emitted %d segments, want 3", len(*out))
	}

	cases := []struct {
		seq            int
		startMs, endMs int64
		overlapMs      int64
	}{
		{0, 0, 10000, 0},
		{1, 8000, 18000, 2000},
		{2, 16000, 26000, 2000},
	}
	for i, want := range cases {
		got := (*out)[i]
		if got.SeqNo != want.seq || got.StartMs != want.startMs || got.EndMs != want.endMs || got.OverlapMs != want.overlapMs {
			t.Errorf("segment %d = {seq %d, %d-%dms, overlap %d}, want {seq %d, %d-%dms, overlap %d}",
				i, got.SeqNo, got.StartMs, got.EndMs, got.OverlapMs,
				want.seq, want.startMs, want.endMs, want.overlapMs)
		}
		if got.DurationMs != 10000 {
			t.Errorf("segment %d duration = %d", i, got.DurationMs)
		}
	}
}

func TestEmittedWindowsPassIngestionValidation(t *testing.T) {
	out, emit := collect()
	c, _ := New(Config{Emit: emit})
	c.Write(make([]int16, wav.SamplesForMs(20000)))

	if len(*out) == 0 {
		t.Fatal("no segments emitted")
	}
	for _, u := range *out {
		if _, err := wav.ValidateSegment(u.Audio); err != nil {
			t.Errorf("segment %d fails validation: %v", u.SeqNo, err)
		}
	}
}

func TestFlushDiscardsShortTail(t *testing.T) {
	out, emit := collect()
	c, _ := New(Config{Emit: emit})

	c.Write(make([]int16, wav.SamplesForMs(12000)))
	c.Flush()

	if len(*out) != 1 {
		t.Errorf("emitted %d segments, want 1; the 4s tail is covered by finalization", len(*out))
	}
	if c.Emitted() != 1 {
		t.Errorf("Emitted() = %d", c.Emitted())
	}
}

func TestConfigValidation(t *testing.T) {
	emit := func(*uploader.PendingUpload) {}

	if _, err := New(Config{WindowMs: 5000, Emit: emit}); err == nil {
		t.Error("window below ingestion minimum must be rejected")
	}
	if _, err := New(Config{WindowMs: 10000, OverlapMs: 10000, Emit: emit}); err == nil {
		t.Error("overlap >= window must be rejected")
	}
	if _, err := New(Config{}); err == nil {
		t.Error("missing emit callback must be rejected")
	}
}
