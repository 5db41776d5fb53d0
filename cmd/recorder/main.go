// recorder replays a recorded WAV file against a scribe backend the way a live
// capture client would: overlapping segments streamed during the session, then
// the full recording for finalization.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/openscribe/scribe-backend/internal/chunker"
	"github.com/openscribe/scribe-backend/internal/shared"
	"github.com/openscribe/scribe-backend/internal/uploader"
	"github.com/openscribe/scribe-backend/internal/wav"
)

func main() {
	var (
		serverURL = flag.String("server", envOr("SCRIBE_SERVER_URL", "http://127.0.0.1:8080"), "backend base URL")
		apiKey    = flag.String("api-key", os.Getenv("SCRIBE_API_KEY"), "API key (optional)")
		sessionID = flag.String("session", "", "session ID (generated when empty)")
		windowMs  = flag.Int64("window-ms", chunker.DefaultWindowMs, "segment window in milliseconds")
		overlapMs = flag.Int64("overlap-ms", chunker.DefaultOverlapMs, "segment overlap in milliseconds")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: recorder [flags] <recording.wav>")
		os.Exit(2)
	}

	audio, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fatal("read recording: %v", err)
	}
	format, err := wav.ValidateRecording(audio)
	if err != nil {
		fatal("unsupported recording: %v", err)
	}

	id := *sessionID
	if id == "" {
		id = shared.NewID("rec_")
	}

	client := uploader.NewClient(*serverURL, *apiKey)
	pipeline := uploader.NewPipeline(uploader.PipelineConfig{
		SessionID: id,
		Sender:    client,
		OnDrop: func(seqNo int, se *shared.StructuredError) {
			fmt.Fprintf(os.Stderr, "segment %d dropped: %s\n", seqNo, se.Message)
		},
	})
	defer pipeline.Close()

	ch, err := chunker.New(chunker.Config{
		WindowMs:  *windowMs,
		OverlapMs: *overlapMs,
		Emit:      pipeline.Enqueue,
	})
	if err != nil {
		fatal("%v", err)
	}

	samples, err := wav.Samples(audio)
	if err != nil {
		fatal("decode recording: %v", err)
	}

	fmt.Printf("session %s: %s, %d segments expected\n", id, format, expectedSegments(len(samples), *windowMs, *overlapMs))

	ch.Write(samples)
	ch.Flush()

	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := pipeline.Wait(waitCtx); err != nil {
		fatal("waiting for uploads: %v", err)
	}

	sent, dropped := pipeline.Stats()
	fmt.Printf("segments sent: %d, dropped: %d\n", sent, dropped)

	finalCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := client.SendFinal(finalCtx, id, audio); err != nil {
		fatal("finalize: %v", err)
	}

	fmt.Printf("session %s finalizing\n", id)
}

func expectedSegments(samples int, windowMs, overlapMs int64) int {
	window := wav.SamplesForMs(windowMs)
	stride := wav.SamplesForMs(windowMs - overlapMs)
	if samples < window || stride <= 0 {
		return 0
	}
	return 1 + (samples-window)/stride
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
