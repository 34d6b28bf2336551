package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

const pcmFormat = 1

var ErrInvalidWAV = errors.New("not a valid PCM WAV stream")

// EncodeWAV renders a window as 16-bit mono PCM WAV, the upload format of
// the recognition and transcription services.
func EncodeWAV(w models.AudioWindow) ([]byte, error) {
	if w.SampleRate <= 0 {
		return nil, fmt.Errorf("encoding wav: invalid sample rate %d", w.SampleRate)
	}

	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		data[i] = int(math.Round(clamp(s) * math.MaxInt16))
	}

	buf := &seekBuffer{}
	enc := wav.NewEncoder(buf, w.SampleRate, 16, 1, pcmFormat)
	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(ib); err != nil {
		return nil, fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing wav: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV reads a PCM WAV stream and returns mono samples in [-1, 1] and
// the sample rate. Multi-channel audio is mixed down by averaging.
func DecodeWAV(r io.ReadSeeker) ([]float64, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, ErrInvalidWAV
	}
	if dec.WavAudioFormat != pcmFormat {
		return nil, 0, fmt.Errorf("unsupported WAV audio format %d: only PCM supported", dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding PCM samples: %w", err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		return nil, 0, errors.New("wav has no channels")
	}
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	if depth <= 0 || depth > 32 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d", depth)
	}
	scale := 1.0 / float64(int64(1)<<(depth-1))

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		out[i] = sum / float64(channels) * scale
	}
	return out, int(dec.SampleRate), nil
}

// ReadWavAsFloat64 decodes a WAV file from disk.
func ReadWavAsFloat64(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

func clamp(s float64) float64 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// seekBuffer is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.buf) {
		grown := make([]byte, end)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(b.pos)
	case io.SeekEnd:
		base = int64(len(b.buf))
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	b.pos = int(next)
	return next, nil
}

func (b *seekBuffer) Bytes() []byte { return b.buf }
