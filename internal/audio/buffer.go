package audio

import (
	"sync"
	"time"

	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

const (
	DefaultSampleRate     = 44100
	DefaultWindowDuration = 20 * time.Second
	DefaultStartupGrace   = 5 * time.Second
)

// RingBuffer keeps the most recent window of mono samples. Writes come from
// the capture goroutine, snapshots from analysis; both are cheap copies.
type RingBuffer struct {
	mu         sync.Mutex
	buf        []float64
	pos        int
	full       bool
	sampleRate int
}

func NewRingBuffer(window time.Duration, sampleRate int) *RingBuffer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if window <= 0 {
		window = DefaultWindowDuration
	}
	capacity := int(window.Seconds() * float64(sampleRate))
	return &RingBuffer{buf: make([]float64, capacity), sampleRate: sampleRate}
}

func (r *RingBuffer) SampleRate() int { return r.sampleRate }

// Capacity is the number of samples in a full window.
func (r *RingBuffer) Capacity() int { return len(r.buf) }

// Write appends a block, overwriting the oldest samples once full.
func (r *RingBuffer) Write(block []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.buf)
	if len(block) >= capacity {
		copy(r.buf, block[len(block)-capacity:])
		r.pos = 0
		r.full = true
		return
	}

	n := copy(r.buf[r.pos:], block)
	if n < len(block) {
		copy(r.buf, block[n:])
		r.full = true
	}
	r.pos = (r.pos + len(block)) % capacity
	if r.pos == 0 && len(block) > 0 {
		r.full = true
	}
}

// Len returns the number of buffered samples.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lenLocked()
}

func (r *RingBuffer) lenLocked() int {
	if r.full {
		return len(r.buf)
	}
	return r.pos
}

// Snapshot returns the buffered samples in chronological order.
func (r *RingBuffer) Snapshot() models.AudioWindow {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]float64, r.lenLocked())
	if r.full {
		n := copy(out, r.buf[r.pos:])
		copy(out[n:], r.buf[:r.pos])
	} else {
		copy(out, r.buf[:r.pos])
	}
	return models.AudioWindow{
		Samples:    out,
		SampleRate: r.sampleRate,
		Duration:   time.Duration(float64(len(out)) / float64(r.sampleRate) * float64(time.Second)),
		CapturedAt: time.Now(),
	}
}

// Window returns a snapshot only when at least minDuration is buffered.
func (r *RingBuffer) Window(minDuration time.Duration) (models.AudioWindow, bool) {
	need := int(minDuration.Seconds() * float64(r.sampleRate))
	if r.Len() < need {
		return models.AudioWindow{}, false
	}
	return r.Snapshot(), true
}

func (r *RingBuffer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos = 0
	r.full = false
}
