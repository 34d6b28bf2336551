package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const DefaultBlockSize = 4096

// Source produces mono float64 blocks. Start returns once capture is running
// on its own goroutine; sink is called from that goroutine and must not block
// for long. Done is closed when capture ends, either via Stop or because the
// input ran out.
type Source interface {
	Start(ctx context.Context, sink func(block []float64)) error
	Stop() error
	SampleRate() int
	Done() <-chan struct{}
}

var ErrAlreadyStarted = errors.New("source already started")

// lifecycle is the start/stop bookkeeping shared by the sources.
type lifecycle struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	err     error
}

func (l *lifecycle) begin(ctx context.Context) (context.Context, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil, ErrAlreadyStarted
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	l.running = true
	l.err = nil
	return ctx, nil
}

func (l *lifecycle) finish(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	l.err = err
	l.running = false
	close(l.done)
}

func (l *lifecycle) stop() error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *lifecycle) doneChan() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return l.done
}

// FileSource replays an audio file as if it were live input. Non-WAV files
// are converted with ffmpeg first.
type FileSource struct {
	Path      string
	BlockSize int
	// Speed scales playback pacing: 1 is real time, 0 streams as fast as
	// the sink accepts.
	Speed float64

	lifecycle
	sampleRate int
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path, BlockSize: DefaultBlockSize, Speed: 1}
}

func (s *FileSource) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sampleRate == 0 {
		return DefaultSampleRate
	}
	return s.sampleRate
}

func (s *FileSource) Start(ctx context.Context, sink func([]float64)) error {
	samples, rate, err := s.load(ctx)
	if err != nil {
		return err
	}

	runCtx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sampleRate = rate
	s.mu.Unlock()

	block := s.BlockSize
	if block <= 0 {
		block = DefaultBlockSize
	}
	go func() {
		s.finish(stream(runCtx, samples, rate, block, s.Speed, sink))
	}()
	return nil
}

func (s *FileSource) Stop() error { return s.stop() }

func (s *FileSource) Done() <-chan struct{} { return s.doneChan() }

func (s *FileSource) load(ctx context.Context) ([]float64, int, error) {
	path := s.Path
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		tmp, err := os.MkdirTemp("", "livesetlist-*")
		if err != nil {
			return nil, 0, err
		}
		defer os.RemoveAll(tmp)
		path, err = ConvertToMonoWAV(ctx, s.Path, tmp, ConvertWAVConfig{SampleRate: DefaultSampleRate})
		if err != nil {
			return nil, 0, fmt.Errorf("converting %s: %w", s.Path, err)
		}
	}
	samples, rate, err := ReadWavAsFloat64(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return samples, rate, nil
}

func stream(ctx context.Context, samples []float64, rate, block int, speed float64, sink func([]float64)) error {
	var pace *time.Ticker
	if speed > 0 {
		interval := time.Duration(float64(block) / float64(rate) / speed * float64(time.Second))
		pace = time.NewTicker(interval)
		defer pace.Stop()
	}

	for off := 0; off < len(samples); off += block {
		end := off + block
		if end > len(samples) {
			end = len(samples)
		}
		chunk := make([]float64, end-off)
		copy(chunk, samples[off:end])
		sink(chunk)

		if pace == nil {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pace.C:
		}
	}
	return nil
}
