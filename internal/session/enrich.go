package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/himanishpuri/LiveSetlist/internal/textmatch"
	"github.com/himanishpuri/LiveSetlist/pkg/logger"
)

// Query is what a strategy gets to work with.
type Query struct {
	Title  string
	Artist string
	ISRC   string
	UPC    string
	Raw    map[string]any
}

// Resolution is the uniform answer of every strategy. Found reports that the
// provider knows the track; Composer and Cover may still be empty.
type Resolution struct {
	Found    bool
	Composer string
	Cover    string
}

// Strategy is one named metadata provider. A returned error means the lookup
// could not be answered and is worth retrying; wrap it with
// backoff.Permanent when it is not.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, q Query) (Resolution, error)
}

type RetryConfig struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxTries: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 4 * time.Second}
}

// Enricher runs strategies in order under a retry budget.
type Enricher struct {
	strategies []Strategy
	retry      RetryConfig
	log        logger.Leveled
}

func NewEnricher(retry RetryConfig, log logger.Leveled, strategies ...Strategy) *Enricher {
	def := DefaultRetryConfig()
	if retry.MaxTries == 0 {
		retry.MaxTries = def.MaxTries
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = def.InitialInterval
	}
	if retry.MaxInterval <= 0 {
		retry.MaxInterval = def.MaxInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Enricher{strategies: strategies, retry: retry, log: log}
}

func (e *Enricher) Strategies() []Strategy { return e.strategies }

// Resolve merges strategy answers: composer from the first strategy that has
// one, cover likewise. It returns an error only once the retry budget is
// spent (or a strategy failed permanently) without finding a composer.
func (e *Enricher) Resolve(ctx context.Context, q Query) (Resolution, error) {
	if len(e.strategies) == 0 {
		return Resolution{}, nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retry.InitialInterval
	b.MaxInterval = e.retry.MaxInterval

	attempt := 0
	op := func() (Resolution, error) {
		attempt++
		return e.pass(ctx, q)
	}
	notify := func(err error, next time.Duration) {
		e.log.Warnf("enrichment of %q attempt %d failed: %v (retry in %s)", q.Title, attempt, err, next)
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(e.retry.MaxTries),
		backoff.WithNotify(notify),
	)
}

func (e *Enricher) pass(ctx context.Context, q Query) (Resolution, error) {
	var out Resolution
	var errs []error
	for _, st := range e.strategies {
		if out.Composer != "" && out.Cover != "" {
			break
		}
		r, err := st.Resolve(ctx, q)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", st.Name(), err))
			continue
		}
		if !r.Found {
			continue
		}
		out.Found = true
		if out.Composer == "" && r.Composer != "" {
			out.Composer = r.Composer
		}
		if out.Cover == "" && r.Cover != "" {
			out.Cover = r.Cover
		}
	}
	if out.Composer == "" && len(errs) > 0 {
		return out, errors.Join(errs...)
	}
	return out, nil
}

// StaticStrategy answers from a fixed table keyed by normalised title and
// artist. Keys missing from the table are "not found".
type StaticStrategy struct {
	Label   string
	entries map[string]Resolution
}

func NewStaticStrategy(label string) *StaticStrategy {
	return &StaticStrategy{Label: label, entries: make(map[string]Resolution)}
}

func (s *StaticStrategy) Add(title, artist, composer, cover string) *StaticStrategy {
	s.entries[textmatch.Key(title, artist)] = Resolution{Found: true, Composer: composer, Cover: cover}
	return s
}

func (s *StaticStrategy) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s *StaticStrategy) Resolve(_ context.Context, q Query) (Resolution, error) {
	if r, ok := s.entries[textmatch.Key(q.Title, q.Artist)]; ok {
		return r, nil
	}
	return Resolution{}, nil
}

// joinNames renders a composer list the way it is stored on entries.
func joinNames(names []string) string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return strings.Join(out, ", ")
}
