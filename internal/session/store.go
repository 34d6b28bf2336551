// Package session keeps the running playlist of a live set: it deduplicates
// confirmed detections, persists every entry synchronously, and resolves
// composers and covers in the background.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/himanishpuri/LiveSetlist/internal/storage"
	"github.com/himanishpuri/LiveSetlist/internal/textmatch"
	"github.com/himanishpuri/LiveSetlist/internal/worker"
	"github.com/himanishpuri/LiveSetlist/pkg/logger"
	"github.com/himanishpuri/LiveSetlist/pkg/models"
	"github.com/patrickmn/go-cache"
)

// ErrNotPending is returned when an enrichment result arrives for an entry
// that is no longer waiting for one.
var ErrNotPending = errors.New("entry is not pending enrichment")

const (
	DefaultDedupWindow   = 15
	DefaultEnrichTimeout = 2 * time.Minute

	ReasonNotSuccessful = "not a successful detection"
	ReasonDuplicate     = "duplicate"
	ReasonClosed        = "session closed"
	ReasonEmptyTitle    = "empty title"
)

type Config struct {
	DedupWindow   int
	Equivalence   textmatch.Thresholds
	Retry         RetryConfig
	EnrichTimeout time.Duration
	Strategies    []Strategy
	Pool          *worker.Pool
	Logger        logger.Leveled
	Now           func() time.Time
}

type Option func(*Config)

func WithDedupWindow(n int) Option { return func(c *Config) { c.DedupWindow = n } }
func WithEquivalence(th textmatch.Thresholds) Option { return func(c *Config) { c.Equivalence = th } }
func WithRetry(r RetryConfig) Option { return func(c *Config) { c.Retry = r } }
func WithEnrichTimeout(d time.Duration) Option { return func(c *Config) { c.EnrichTimeout = d } }
func WithStrategies(s ...Strategy) Option { return func(c *Config) { c.Strategies = s } }
func WithPool(p *worker.Pool) Option { return func(c *Config) { c.Pool = p } }
func WithLogger(l logger.Leveled) Option { return func(c *Config) { c.Logger = l } }
func WithClock(now func() time.Time) Option { return func(c *Config) { c.Now = now } }

func defaultConfig() Config {
	return Config{
		DedupWindow:   DefaultDedupWindow,
		Equivalence:   textmatch.DefaultThresholds(),
		Retry:         DefaultRetryConfig(),
		EnrichTimeout: DefaultEnrichTimeout,
		Now:           time.Now,
	}
}

// Patch carries operator corrections; nil fields are left alone.
type Patch struct {
	Title    *string
	Artist   *string
	Composer *string
	Album    *string
}

// Store is the session playlist. One mutex guards the list, the id counter
// and the resolution cache; enrichment lookups run outside it.
type Store struct {
	mu       sync.Mutex
	cfg      Config
	log      logger.Leveled
	durable  storage.Store
	enricher *Enricher
	pool     *worker.Pool
	ownPool  bool

	entries []*models.SongEntry // insertion order, includes soft-deleted
	byID    map[int64]*models.SongEntry
	cache   *cache.Cache
	nextID  int64
	gens    map[int64]uint64
	genSeq  uint64
	closed  bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Open replays the durable store into memory and reschedules enrichment for
// entries still pending. A nil durable store selects an in-memory one.
func Open(durable storage.Store, opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.Equivalence == (textmatch.Thresholds{}) {
		cfg.Equivalence = textmatch.DefaultThresholds()
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = DefaultEnrichTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if durable == nil {
		durable = storage.NewMemoryStore()
	}

	s := &Store{
		cfg:      cfg,
		log:      cfg.Logger,
		durable:  durable,
		enricher: NewEnricher(cfg.Retry, cfg.Logger, cfg.Strategies...),
		pool:     cfg.Pool,
		byID:     make(map[int64]*models.SongEntry),
		cache:    cache.New(cache.NoExpiration, 0),
		gens:     make(map[int64]uint64),
		nextID:   1,
	}
	if s.pool == nil {
		s.pool = worker.New(worker.DefaultSize)
		s.ownPool = true
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if err := s.recover(); err != nil {
		s.cancel()
		if s.ownPool {
			s.pool.Close()
		}
		return nil, err
	}
	return s, nil
}

func (s *Store) recover() error {
	records, err := s.durable.List()
	if err != nil {
		return err
	}
	if a, ok := s.durable.(storage.Archiver); ok {
		archived, err := a.ListArchived()
		if err != nil {
			return err
		}
		for _, r := range archived {
			if r.ID >= s.nextID {
				s.nextID = r.ID + 1
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pending := 0
	for _, r := range records {
		e := r.Entry()
		s.entries = append(s.entries, &e)
		s.byID[e.ID] = &e
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
		switch e.Composer {
		case models.ComposerPending:
			pending++
			s.schedule(s.bump(e.ID), &e, nil)
		case models.ComposerLookupFailed:
		default:
			s.cache.SetDefault(textmatch.Key(e.Title, e.Artist), Resolution{Found: true, Composer: e.Composer, Cover: e.CoverURL})
		}
	}
	if len(records) > 0 {
		s.log.Infof("recovered %d entries (%d pending enrichment), next id %d", len(records), pending, s.nextID)
	}
	return nil
}

// AddSong applies a confirmed detection to the playlist.
func (s *Store) AddSong(c *models.Candidate, targetArtist string) models.AddResult {
	if !c.Succeeded() {
		return models.AddResult{Status: models.Rejected, Reason: ReasonNotSuccessful}
	}
	return s.add(*c, targetArtist, "")
}

// AddManual inserts an operator-entered song. An empty composer is resolved
// like any detection.
func (s *Store) AddManual(title, artist, composer string) models.AddResult {
	if title == "" {
		return models.AddResult{Status: models.Rejected, Reason: ReasonEmptyTitle}
	}
	c := models.Candidate{
		Status: models.StatusSuccess,
		Title:  title,
		Artist: artist,
		Score:  100,
		Type:   models.TypeManual,
		Source: "manual",
	}
	return s.add(c, "", composer)
}

// add inserts c unless an equivalent entry is recent. A non-empty composer
// marks an operator entry and skips enrichment.
func (s *Store) add(c models.Candidate, targetArtist, composer string) models.AddResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.AddResult{Status: models.Rejected, Reason: ReasonClosed}
	}

	incoming := textmatch.Track{Title: c.Title, Artist: c.Artist, DurationMs: c.DurationMs}
	for _, e := range s.recentActive() {
		if !s.cfg.Equivalence.Equivalent(entryTrack(e), incoming) {
			continue
		}
		if targetArtist != "" &&
			!textmatch.ArtistMatches(targetArtist, e.Artist) && textmatch.ArtistMatches(targetArtist, c.Artist) {
			s.upgrade(e, &c)
			cp := *e
			return models.AddResult{Status: models.Updated, Entry: &cp}
		}
		cp := *e
		return models.AddResult{Status: models.Rejected, Reason: ReasonDuplicate, Entry: &cp}
	}

	e := &models.SongEntry{
		ID:         s.nextID,
		Title:      c.Title,
		Artist:     c.Artist,
		Album:      c.Album,
		Score:      c.Score,
		Type:       c.Type,
		DurationMs: c.DurationMs,
		ISRC:       c.ISRC,
		UPC:        c.UPC,
		Timestamp:  s.cfg.Now(),
		Manual:     c.Type == models.TypeManual,
	}
	s.nextID++

	cached, hit := s.lookup(e.Title, e.Artist)
	switch {
	case composer != "":
		e.Composer = composer
		e.CoverURL = cached.Cover
		hit = true
	case hit:
		e.Composer = cached.Composer
		e.CoverURL = cached.Cover
	default:
		e.Composer = models.ComposerPending
	}
	e.OriginalTitle = e.Title
	e.OriginalArtist = e.Artist
	e.OriginalComposer = e.Composer

	if err := s.durable.Insert(e.ToRecord()); err != nil {
		s.log.Warnf("persisting entry %d (%s) failed: %v", e.ID, e.Title, err)
	}
	s.entries = append(s.entries, e)
	s.byID[e.ID] = e
	gen := s.bump(e.ID)
	if !hit {
		s.schedule(gen, e, c.Raw)
	}
	s.log.Infof("added #%d %s - %s (score %.0f, composer %q)", e.ID, e.Title, e.Artist, e.Score, e.Composer)

	cp := *e
	return models.AddResult{Status: models.Added, Entry: &cp}
}

// upgrade rewrites an entry with a better-attributed detection of the same
// song. The original_* snapshot is left alone. Callers hold s.mu.
func (s *Store) upgrade(e *models.SongEntry, c *models.Candidate) {
	s.log.Infof("upgrading #%d %s: artist %q -> %q", e.ID, e.Title, e.Artist, c.Artist)
	e.Artist = c.Artist
	e.Album = c.Album
	e.Score = c.Score
	e.Type = c.Type
	e.DurationMs = c.DurationMs
	e.ISRC = c.ISRC
	e.UPC = c.UPC

	gen := s.bump(e.ID)
	cached, hit := s.lookup(e.Title, e.Artist)
	if hit {
		e.Composer = cached.Composer
		e.CoverURL = cached.Cover
	} else {
		e.Composer = models.ComposerPending
		e.CoverURL = ""
		s.schedule(gen, e, c.Raw)
	}

	s.persist(e.ID,
		models.FieldArtist, e.Artist,
		models.FieldAlbum, e.Album,
		models.FieldScore, e.Score,
		models.FieldType, string(e.Type),
		models.FieldDurationMs, e.DurationMs,
		models.FieldISRC, e.ISRC,
		models.FieldUPC, e.UPC,
		models.FieldComposer, e.Composer,
		models.FieldCoverURL, e.CoverURL,
	)
}

// recentActive returns up to DedupWindow active entries, newest first.
func (s *Store) recentActive() []*models.SongEntry {
	out := make([]*models.SongEntry, 0, s.cfg.DedupWindow)
	for i := len(s.entries) - 1; i >= 0 && len(out) < s.cfg.DedupWindow; i-- {
		if !s.entries[i].IsDeleted {
			out = append(out, s.entries[i])
		}
	}
	return out
}

func (s *Store) lookup(title, artist string) (Resolution, bool) {
	v, ok := s.cache.Get(textmatch.Key(title, artist))
	if !ok {
		return Resolution{}, false
	}
	return v.(Resolution), true
}

func (s *Store) bump(id int64) uint64 {
	s.genSeq++
	s.gens[id] = s.genSeq
	return s.genSeq
}

// persist writes field/value pairs, logging failures. Callers hold s.mu.
func (s *Store) persist(id int64, kv ...any) {
	for i := 0; i+1 < len(kv); i += 2 {
		field := kv[i].(string)
		if err := s.durable.UpdateField(id, field, kv[i+1]); err != nil {
			s.log.Warnf("persisting %s of entry %d failed: %v", field, id, err)
		}
	}
}

func entryTrack(e *models.SongEntry) textmatch.Track {
	return textmatch.Track{Title: e.Title, Artist: e.Artist, DurationMs: e.DurationMs}
}

// GetPlaylist returns copies of the active entries, or of every entry when
// includeDeleted is set, in insertion order.
func (s *Store) GetPlaylist(includeDeleted bool) []models.SongEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SongEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.IsDeleted && !includeDeleted {
			continue
		}
		out = append(out, *e)
	}
	return out
}

// Get returns a copy of one entry, deleted or not.
func (s *Store) Get(id int64) (models.SongEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return models.SongEntry{}, false
	}
	return *e, true
}

// DeleteSong soft-deletes an active entry and drops it from the durable
// active set.
func (s *Store) DeleteSong(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok || e.IsDeleted {
		return false
	}
	e.IsDeleted = true
	if err := s.durable.Delete(id); err != nil {
		s.log.Warnf("deleting entry %d from storage failed: %v", id, err)
	}
	s.log.Infof("deleted #%d %s", id, e.Title)
	return true
}

// ClearSession empties the playlist and the resolution cache. Nothing is
// cleared in memory if the durable store refuses.
func (s *Store) ClearSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.durable.Clear(); err != nil {
		s.log.Errorf("clearing storage failed: %v", err)
		return false
	}
	s.entries = nil
	s.byID = make(map[int64]*models.SongEntry)
	s.gens = make(map[int64]uint64)
	s.cache.Flush()
	s.log.Infof("session cleared, next id %d", s.nextID)
	return true
}

// ConfirmSong marks an active entry as reviewed by the operator.
func (s *Store) ConfirmSong(id int64, confirmed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok || e.IsDeleted {
		return false
	}
	e.Confirmed = confirmed
	s.persist(id, models.FieldConfirmed, confirmed)
	return true
}

// UpdateSong applies operator corrections to an active entry. original_*
// fields keep the detected values.
func (s *Store) UpdateSong(id int64, p Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok || e.IsDeleted {
		return false
	}
	var kv []any
	if p.Title != nil {
		e.Title = *p.Title
		kv = append(kv, models.FieldTitle, e.Title)
	}
	if p.Artist != nil {
		e.Artist = *p.Artist
		kv = append(kv, models.FieldArtist, e.Artist)
	}
	if p.Album != nil {
		e.Album = *p.Album
		kv = append(kv, models.FieldAlbum, e.Album)
	}
	if p.Composer != nil {
		e.Composer = *p.Composer
		kv = append(kv, models.FieldComposer, e.Composer)
		s.bump(id)
	}
	s.persist(id, kv...)
	return true
}

// Wait blocks until scheduled enrichment has finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// WaitTimeout is Wait bounded by d; it reports whether enrichment drained.
func (s *Store) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// Close cancels outstanding enrichment, waits for it and closes storage.
// Entries left pending are picked up again by the next Open.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	if s.ownPool {
		s.pool.Close()
	}
	return s.durable.Close()
}
