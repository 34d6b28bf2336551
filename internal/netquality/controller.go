// Package netquality tracks recognition-call latency and switches the
// pipeline between normal and degraded audio/cadence modes.
package netquality

import (
	"fmt"
	"sync"
	"time"
)

type Mode int

const (
	Normal Mode = iota
	Degraded
)

func (m Mode) String() string {
	if m == Degraded {
		return "degraded"
	}
	return "normal"
}

type Config struct {
	UpperBound       time.Duration // latency that counts towards degrading
	LowerBound       time.Duration // latency that counts towards recovering
	Streak           int           // consecutive observations needed to switch
	Interval         time.Duration
	DegradedInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		UpperBound:       4500 * time.Millisecond,
		LowerBound:       2 * time.Second,
		Streak:           3,
		Interval:         6 * time.Second,
		DegradedInterval: 10 * time.Second,
	}
}

// Controller is safe for concurrent use. The mode only changes inside
// Observe, ObserveFailure and Measure.
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	mode     Mode
	slow     int
	fast     int
	last     time.Duration
	failures int
}

func New(cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.UpperBound <= 0 {
		cfg.UpperBound = def.UpperBound
	}
	if cfg.LowerBound <= 0 || cfg.LowerBound > cfg.UpperBound {
		cfg.LowerBound = def.LowerBound
	}
	if cfg.Streak <= 0 {
		cfg.Streak = def.Streak
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.DegradedInterval <= 0 {
		cfg.DegradedInterval = def.DegradedInterval
	}
	return &Controller{cfg: cfg}
}

// Observe records the latency of one successful call.
func (c *Controller) Observe(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observeLocked(latency)
}

func (c *Controller) observeLocked(latency time.Duration) {
	c.last = latency
	switch {
	case latency > c.cfg.UpperBound:
		c.slow++
		c.fast = 0
	case latency < c.cfg.LowerBound:
		c.fast++
		c.slow = 0
	default:
		c.slow, c.fast = 0, 0
	}

	if c.mode == Normal && c.slow >= c.cfg.Streak {
		c.mode = Degraded
		c.slow = 0
	} else if c.mode == Degraded && c.fast >= c.cfg.Streak {
		c.mode = Normal
		c.fast = 0
	}
}

// ObserveFailure records a network failure; it forces degraded mode.
func (c *Controller) ObserveFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failLocked()
}

func (c *Controller) failLocked() {
	c.failures++
	c.mode = Degraded
	c.slow, c.fast = 0, 0
}

// Measure runs fn, timing it, and records the outcome. fn reports whether
// the call failed at the network level (as opposed to an application-level
// "no match"), which is what counts as a failure here.
func (c *Controller) Measure(fn func() (networkErr error)) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failLocked()
		return err
	}
	c.observeLocked(elapsed)
	return nil
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Degraded reports whether audio should be sent in the reduced format.
func (c *Controller) Degraded() bool {
	return c.Mode() == Degraded
}

// Interval is the analysis cadence for the current mode.
func (c *Controller) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Degraded {
		return c.cfg.DegradedInterval
	}
	return c.cfg.Interval
}

// Reset returns to normal mode with empty streaks.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = Normal
	c.slow, c.fast, c.failures = 0, 0, 0
	c.last = 0
}

type Snapshot struct {
	Mode        Mode
	LastLatency time.Duration
	Failures    int
}

func (s Snapshot) String() string {
	return fmt.Sprintf("mode=%s last=%s failures=%d", s.Mode, s.LastLatency.Round(time.Millisecond), s.Failures)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Mode: c.mode, LastLatency: c.last, Failures: c.failures}
}
