// Package stability debounces per-window recognition results: a song is
// only confirmed once it recurs within a short history.
package stability

import (
	"sync"

	"github.com/himanishpuri/LiveSetlist/internal/textmatch"
	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

const (
	DefaultSize     = 10
	DefaultRequired = 2
)

type Config struct {
	Size        int
	Required    int
	Equivalence textmatch.Thresholds
}

func DefaultConfig() Config {
	return Config{Size: DefaultSize, Required: DefaultRequired, Equivalence: textmatch.DefaultThresholds()}
}

// Tracker keeps the best candidate (or nothing) of the last Size windows.
// A song is forwarded once it appears Required times; it is not forwarded
// again until every one of its occurrences has rolled out of the history.
type Tracker struct {
	mu        sync.Mutex
	cfg       Config
	history   []*models.Candidate // oldest first, nil for empty windows
	forwarded []textmatch.Track
}

func New(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.Size <= 0 {
		cfg.Size = def.Size
	}
	if cfg.Required <= 0 {
		cfg.Required = def.Required
	}
	if cfg.Equivalence == (textmatch.Thresholds{}) {
		cfg.Equivalence = def.Equivalence
	}
	return &Tracker{cfg: cfg}
}

// Observe records one window's result (nil when nothing was recognised)
// and returns the candidate to forward, if any.
func (t *Tracker) Observe(c *models.Candidate) *models.Candidate {
	t.mu.Lock()
	defer t.mu.Unlock()

	var entry *models.Candidate
	if c.Succeeded() {
		cp := *c
		entry = &cp
	}
	t.history = append(t.history, entry)
	if len(t.history) > t.cfg.Size {
		t.history = t.history[len(t.history)-t.cfg.Size:]
	}
	t.pruneForwarded()

	if entry == nil {
		return nil
	}
	tr := track(entry)
	if t.isForwarded(tr) || t.occurrences(tr) < t.cfg.Required {
		return nil
	}
	t.forwarded = append(t.forwarded, tr)
	out := *entry
	return &out
}

// Reset clears history and forwarding state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = nil
	t.forwarded = nil
}

// Len is the number of windows currently remembered.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.history)
}

func (t *Tracker) occurrences(tr textmatch.Track) int {
	n := 0
	for _, h := range t.history {
		if h != nil && t.cfg.Equivalence.Equivalent(track(h), tr) {
			n++
		}
	}
	return n
}

func (t *Tracker) isForwarded(tr textmatch.Track) bool {
	for _, f := range t.forwarded {
		if t.cfg.Equivalence.Equivalent(f, tr) {
			return true
		}
	}
	return false
}

func (t *Tracker) pruneForwarded() {
	kept := t.forwarded[:0]
	for _, f := range t.forwarded {
		if t.occurrences(f) > 0 {
			kept = append(kept, f)
		}
	}
	t.forwarded = kept
}

func track(c *models.Candidate) textmatch.Track {
	return textmatch.Track{Title: c.Title, Artist: c.Artist, DurationMs: c.DurationMs}
}
