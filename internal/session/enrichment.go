package session

import (
	"context"
	"errors"

	"github.com/himanishpuri/LiveSetlist/internal/textmatch"
	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

// schedule queues enrichment of e for generation gen. Callers hold s.mu.
func (s *Store) schedule(gen uint64, e *models.SongEntry, raw map[string]any) {
	id := e.ID
	q := Query{Title: e.Title, Artist: e.Artist, ISRC: e.ISRC, UPC: e.UPC, Raw: raw}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		done := make(chan struct{})
		err := s.pool.Go(s.ctx, func() {
			defer close(done)
			s.enrich(id, gen, q)
		})
		if err != nil {
			s.log.Warnf("enrichment of entry %d not scheduled: %v", id, err)
			return
		}
		<-done
	}()
}

func (s *Store) enrich(id int64, gen uint64, q Query) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.EnrichTimeout)
	defer cancel()

	res, err := s.enricher.Resolve(ctx, q)
	if err != nil && s.ctx.Err() != nil {
		// Shutting down; leave the entry pending for the next run.
		return
	}
	if err != nil {
		s.log.Warnf("enrichment of #%d %s gave up: %v", id, q.Title, err)
	}
	if cerr := s.commit(id, gen, q, res, err); cerr != nil && !errors.Is(cerr, ErrNotPending) {
		s.log.Errorf("committing enrichment of #%d: %v", id, cerr)
	}
}

// commit applies one enrichment outcome. It is a no-op unless the entry is
// still pending and gen is its current generation.
func (s *Store) commit(id int64, gen uint64, q Query, res Resolution, lookupErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok || s.gens[id] != gen || e.Composer != models.ComposerPending {
		return ErrNotPending
	}

	composer := res.Composer
	switch {
	case lookupErr != nil:
		composer = models.ComposerLookupFailed
	case composer == "":
		composer = models.ComposerUnknown
	}

	kv := []any{models.FieldComposer, composer}
	e.Composer = composer
	// The only write to original_composer after creation: the placeholder
	// is replaced by the first committed answer.
	if e.OriginalComposer == models.ComposerPending {
		e.OriginalComposer = composer
		kv = append(kv, models.FieldOriginalComposer, composer)
	}
	if e.CoverURL == "" && res.Cover != "" {
		e.CoverURL = res.Cover
		kv = append(kv, models.FieldCoverURL, res.Cover)
	}
	if !e.IsDeleted {
		s.persist(id, kv...)
	}
	if lookupErr == nil {
		s.cache.SetDefault(textmatch.Key(q.Title, q.Artist), Resolution{Found: res.Found, Composer: composer, Cover: e.CoverURL})
	}
	s.log.Infof("enriched #%d %s: composer %q", id, e.Title, composer)
	return nil
}
