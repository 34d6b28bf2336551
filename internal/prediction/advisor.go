// Package prediction keeps the per-artist whitelist and historical running
// orders used to boost recognition and anticipate the next song.
package prediction

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/LiveSetlist/internal/textmatch"
	"github.com/himanishpuri/LiveSetlist/pkg/logger"
)

const (
	shortTitleRunes  = 4
	likelySimilarity = 0.85
	occurrenceMatch  = 0.9
)

// Advisor is safe for concurrent use. It is rebuilt whenever the target
// artist changes; until the first rebuild completes it knows nothing and
// every query returns the zero answer.
type Advisor struct {
	sources []CatalogSource
	log     logger.Leveled

	mu        sync.RWMutex
	artist    string
	gen       uint64
	ready     bool
	whitelist []string   // normalised, unique
	titles    []string   // whitelist entries as first seen
	sequences [][]string // original titles, in played order
	expected  string
}

func NewAdvisor(log logger.Leveled, sources ...CatalogSource) *Advisor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Advisor{sources: sources, log: log}
}

// Rebuild fetches every source concurrently and replaces the model. A newer
// Rebuild started meanwhile wins; the older result is discarded.
func (a *Advisor) Rebuild(ctx context.Context, artist string) error {
	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.artist = artist
	a.ready = false
	a.expected = ""
	a.mu.Unlock()

	catalogs := make([]Catalog, len(a.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		g.Go(func() error {
			c, err := src.Fetch(gctx, artist)
			if err != nil {
				a.log.Warnf("catalog source %s failed for %q: %v", src.Name(), artist, err)
				return nil
			}
			a.log.Infof("catalog source %s: %d titles, %d sequences for %q", src.Name(), len(c.Titles), len(c.Sequences), artist)
			catalogs[i] = c
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	var whitelist, titles []string
	var sequences [][]string
	add := func(title string) {
		n := textmatch.Normalize(title)
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		whitelist = append(whitelist, n)
		titles = append(titles, strings.TrimSpace(title))
	}
	for _, c := range catalogs {
		for _, t := range c.Titles {
			add(t)
		}
		for _, seq := range c.Sequences {
			if len(seq) == 0 {
				continue
			}
			for _, t := range seq {
				add(t)
			}
			sequences = append(sequences, seq)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		return nil
	}
	a.whitelist = whitelist
	a.titles = titles
	a.sequences = sequences
	a.ready = true
	return nil
}

func (a *Advisor) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

func (a *Advisor) Artist() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.artist
}

// TitlesFor returns the whitelisted titles as the sources spelled them, or
// nil unless a completed rebuild for artist is current.
func (a *Advisor) TitlesFor(artist string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.ready || !strings.EqualFold(a.artist, artist) {
		return nil
	}
	return append([]string(nil), a.titles...)
}

// Size reports the number of whitelisted titles.
func (a *Advisor) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.whitelist)
}

// IsLikely reports whether title fuzzily belongs to the whitelist. Short
// titles only match on word boundaries so that "One" does not match
// "Someone Like You".
func (a *Advisor) IsLikely(title string) bool {
	t := textmatch.Normalize(title)
	if t == "" {
		return false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, w := range a.whitelist {
		if t == w {
			return true
		}
		if isShort(t) || isShort(w) {
			if textmatch.ContainsWord(w, t) || textmatch.ContainsWord(t, w) {
				return true
			}
			continue
		}
		if strings.Contains(w, t) || strings.Contains(t, w) || textmatch.Similarity(t, w) > likelySimilarity {
			return true
		}
	}
	return false
}

func isShort(normalized string) bool {
	return len([]rune(normalized)) <= shortTitleRunes || !strings.Contains(normalized, " ")
}

// PredictNext returns the song that most often followed current in the
// known running orders, or "" when there is no history for it.
func (a *Advisor) PredictNext(current string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.predictLocked(current)
}

func (a *Advisor) predictLocked(current string) string {
	c := textmatch.Normalize(current)
	if c == "" {
		return ""
	}

	counts := make(map[string]int)
	var order []string
	first := make(map[string]string)
	for _, seq := range a.sequences {
		for i := 0; i+1 < len(seq); i++ {
			s := textmatch.Normalize(seq[i])
			if s != c && textmatch.Similarity(s, c) <= occurrenceMatch {
				continue
			}
			next := textmatch.Normalize(seq[i+1])
			if next == "" {
				continue
			}
			if _, ok := counts[next]; !ok {
				order = append(order, next)
				first[next] = seq[i+1]
			}
			counts[next]++
		}
	}

	best, bestCount := "", 0
	for _, k := range order {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	if best == "" {
		return ""
	}
	return first[best]
}

// SetCurrent records the song just confirmed and updates the expected next
// track accordingly.
func (a *Advisor) SetCurrent(title string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.expected = a.predictLocked(title)
	if a.expected != "" {
		a.log.Debugf("after %q expecting %q", title, a.expected)
	}
}

// Expected returns the predicted next track, or "".
func (a *Advisor) Expected() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.expected
}
