package audio

import (
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV serializes the waveform as a 16-bit mono PCM WAV container.
func EncodeWAV(w Waveform) ([]byte, error) {
	if w.Empty() {
		return nil, fmt.Errorf("cannot encode empty waveform")
	}
	if w.SampleRate <= 0 {
		return nil, fmt.Errorf("cannot encode waveform with rate %d", w.SampleRate)
	}

	intData := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		clamped := math.Max(-1.0, math.Min(1.0, float64(s)))
		intData[i] = int(clamped * 32767)
	}

	buf := &writeSeekBuffer{}
	enc := wav.NewEncoder(buf, w.SampleRate, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Data:           intData,
		Format:         &goaudio.Format{SampleRate: w.SampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}

	return buf.data, nil
}

// writeSeekBuffer adapts an in-memory byte slice to io.WriteSeeker so the
// wav encoder can patch chunk sizes after writing.
type writeSeekBuffer struct {
	data []byte
	pos  int
}

func (b *writeSeekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *writeSeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("unsupported whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("seek before start")
	}
	b.pos = int(next)
	return next, nil
}
