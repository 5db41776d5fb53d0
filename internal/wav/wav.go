// Package wav parses and validates the RIFF/WAVE containers arriving on the
// ingestion surface and encodes PCM windows produced by the chunker.
package wav

import (
	"encoding/binary"
	"fmt"

	"github.com/openscribe/scribe-backend/internal/shared"
)

const (
	RequiredSampleRate = 16000
	RequiredChannels   = 1
	RequiredBitDepth   = 16

	MinSegmentDurationMs = 8000
	MaxSegmentDurationMs = 12000

	headerLen = 44
)

// Format is the decoded fmt-chunk of a WAV file plus the derived duration.
type Format struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
	DataBytes     uint32
	DurationMs    int64

	dataOff int
}

// Parse reads the RIFF header and locates the fmt and data chunks. It tolerates
// extra chunks (LIST, fact) between fmt and data, which browser encoders emit.
func Parse(audio []byte) (*Format, error) {
	if len(audio) < headerLen {
		return nil, shared.ValidationError("audio too short for a WAV header (%d bytes)", len(audio))
	}
	if string(audio[0:4]) != "RIFF" || string(audio[8:12]) != "WAVE" {
		return nil, shared.ValidationError("not a RIFF/WAVE container")
	}

	var f Format
	sawFmt := false
	off := 12
	for off+8 <= len(audio) {
		id := string(audio[off : off+4])
		size := binary.LittleEndian.Uint32(audio[off+4 : off+8])
		body := off + 8

		switch id {
		case "fmt ":
			if int(size) < 16 || body+16 > len(audio) {
				return nil, shared.ValidationError("malformed fmt chunk")
			}
			f.AudioFormat = binary.LittleEndian.Uint16(audio[body : body+2])
			f.Channels = binary.LittleEndian.Uint16(audio[body+2 : body+4])
			f.SampleRate = binary.LittleEndian.Uint32(audio[body+4 : body+8])
			f.BitsPerSample = binary.LittleEndian.Uint16(audio[body+14 : body+16])
			sawFmt = true
		case "data":
			if !sawFmt {
				return nil, shared.ValidationError("data chunk before fmt chunk")
			}
			f.DataBytes = size
			if avail := uint32(len(audio) - body); f.DataBytes > avail {
				// Streaming encoders sometimes leave the declared size short or
				// inflated; trust the bytes actually present.
				f.DataBytes = avail
			}
			byteRate := int64(f.SampleRate) * int64(f.Channels) * int64(f.BitsPerSample) / 8
			if byteRate > 0 {
				f.DurationMs = int64(f.DataBytes) * 1000 / byteRate
			}
			f.dataOff = body
			return &f, nil
		}

		// Chunks are word-aligned.
		off = body + int(size)
		if size%2 == 1 {
			off++
		}
	}

	return nil, shared.ValidationError("no data chunk found")
}

// ValidateSegment enforces the fixed ingestion invariants for incremental
// segments: mono 16-bit 16 kHz PCM, 8-12 s long.
func ValidateSegment(audio []byte) (*Format, error) {
	f, err := ValidateRecording(audio)
	if err != nil {
		return nil, err
	}
	if f.DurationMs < MinSegmentDurationMs || f.DurationMs > MaxSegmentDurationMs {
		return nil, shared.ValidationError("segment duration %dms outside %d-%dms bounds",
			f.DurationMs, MinSegmentDurationMs, MaxSegmentDurationMs)
	}
	return f, nil
}

// ValidateRecording enforces the format invariants without the segment duration
// bound; full recordings may be any length.
func ValidateRecording(audio []byte) (*Format, error) {
	f, err := Parse(audio)
	if err != nil {
		return nil, err
	}
	if f.AudioFormat != 1 {
		return nil, shared.ValidationError("audio format %d is not PCM", f.AudioFormat)
	}
	if f.Channels != RequiredChannels {
		return nil, shared.ValidationError("channel count %d is not mono", f.Channels)
	}
	if f.SampleRate != RequiredSampleRate {
		return nil, shared.ValidationError("sample rate %d is not %d", f.SampleRate, RequiredSampleRate)
	}
	if f.BitsPerSample != RequiredBitDepth {
		return nil, shared.ValidationError("bit depth %d is not %d", f.BitsPerSample, RequiredBitDepth)
	}
	return f, nil
}

// Encode wraps mono 16 kHz int16 samples in a minimal WAV container.
func Encode(samples []int16) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, headerLen+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], RequiredChannels)
	binary.LittleEndian.PutUint32(buf[24:28], RequiredSampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], RequiredSampleRate*RequiredChannels*RequiredBitDepth/8)
	binary.LittleEndian.PutUint16(buf[32:34], RequiredChannels*RequiredBitDepth/8)
	binary.LittleEndian.PutUint16(buf[34:36], RequiredBitDepth)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[headerLen+i*2:], uint16(s))
	}
	return buf
}

// Samples parses the container and decodes its data chunk into int16 samples.
func Samples(audio []byte) ([]int16, error) {
	f, err := Parse(audio)
	if err != nil {
		return nil, err
	}
	return PCMBytesToInt16(audio[f.dataOff : f.dataOff+int(f.DataBytes)]), nil
}

// PCMBytesToInt16 decodes little-endian 16-bit PCM bytes into samples.
func PCMBytesToInt16(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// SamplesForMs returns the sample count covering the given duration at the
// required rate.
func SamplesForMs(ms int64) int {
	return int(ms * RequiredSampleRate / 1000)
}

func (f *Format) String() string {
	return fmt.Sprintf("%dHz %dch %dbit %dms", f.SampleRate, f.Channels, f.BitsPerSample, f.DurationMs)
}
