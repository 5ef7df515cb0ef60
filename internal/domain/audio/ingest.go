package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	platformerrors "vocalis-server-go/internal/platform/errors"
	"vocalis-server-go/internal/platform/logging"
)

// Ingestor decodes uploaded audio bytes into the canonical waveform. WAV is
// tried first, MP3 second; any channel layout is down-mixed to mono.
type Ingestor struct {
	logger *logging.Logger
}

func NewIngestor(logger *logging.Logger) *Ingestor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Ingestor{logger: logger}
}

// Decode turns raw upload bytes into a Waveform. The name hint only feeds
// diagnostics; decoder selection is content-driven.
func (in *Ingestor) Decode(data []byte, nameHint string) (Waveform, error) {
	if len(data) == 0 {
		return Waveform{}, platformerrors.New(platformerrors.KindDecode, "ingest",
			"empty audio payload")
	}

	w, wavErr := decodeWAV(data)
	if wavErr == nil {
		in.logger.InfoTag("Audio", "decoded %q as wav: %d bytes, %.2fs at %dHz",
			nameHint, len(data), w.Duration().Seconds(), w.SampleRate)
		return w, nil
	}

	w, mp3Err := decodeMP3(data)
	if mp3Err == nil {
		in.logger.InfoTag("Audio", "decoded %q as mp3: %d bytes, %.2fs at %dHz",
			nameHint, len(data), w.Duration().Seconds(), w.SampleRate)
		return w, nil
	}

	return Waveform{}, platformerrors.New(platformerrors.KindDecode, "ingest",
		fmt.Sprintf("undecodable audio %q: wav: %v; mp3: %v", nameHint, wavErr, mp3Err))
}

func decodeWAV(data []byte) (Waveform, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Waveform{}, fmt.Errorf("not a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("read pcm: %w", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return Waveform{}, fmt.Errorf("wav contains no samples")
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c]) / scale
		}
		samples[i] = sum / float32(channels)
	}

	return Waveform{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

func decodeMP3(data []byte) (Waveform, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Waveform{}, fmt.Errorf("open mp3: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return Waveform{}, fmt.Errorf("read mp3 pcm: %w", err)
	}
	// go-mp3 always emits 16-bit little-endian stereo frames.
	const frameBytes = 4
	frames := len(pcm) / frameBytes
	if frames == 0 {
		return Waveform{}, fmt.Errorf("mp3 contains no samples")
	}

	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(pcm[i*frameBytes:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*frameBytes+2:]))
		samples[i] = (float32(left) + float32(right)) / 2 / 32768
	}

	return Waveform{Samples: samples, SampleRate: dec.SampleRate()}, nil
}
