package livesetlist

import (
	"context"
	"fmt"
	"sync"

	"github.com/himanishpuri/LiveSetlist/internal/netquality"
	"github.com/himanishpuri/LiveSetlist/internal/pipeline"
	"github.com/himanishpuri/LiveSetlist/internal/prediction"
	"github.com/himanishpuri/LiveSetlist/internal/recognition"
	"github.com/himanishpuri/LiveSetlist/internal/session"
	"github.com/himanishpuri/LiveSetlist/internal/storage"
	"github.com/himanishpuri/LiveSetlist/internal/worker"
	"github.com/himanishpuri/LiveSetlist/pkg/logger"
)

// liveService is the default implementation of the Service interface.
type liveService struct {
	config  *Config
	log     Logger
	pool    *worker.Pool
	store   *session.Store
	monitor *pipeline.Monitor // nil without a source and fingerprinter

	mu       sync.Mutex
	observer *pipeline.SessionObserver
	closed   bool
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	// Set default logger if none provided
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	// Create or use provided storage
	durable := cfg.Storage
	if durable == nil {
		var err error
		durable, err = storage.Open(context.Background(), storage.Config{
			Backend:  cfg.Backend,
			Path:     cfg.DBPath,
			MongoURI: cfg.MongoURI,
			MongoDB:  cfg.MongoDB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
	}

	pool := worker.New(cfg.Workers)
	store, err := session.Open(durable,
		session.WithPool(pool),
		session.WithLogger(cfg.Logger),
		session.WithStrategies(cfg.Strategies...),
		session.WithDedupWindow(cfg.DedupWindow),
	)
	if err != nil {
		durable.Close()
		pool.Close()
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	s := &liveService{config: cfg, log: cfg.Logger, pool: pool, store: store}
	if cfg.Source != nil && cfg.Fingerprinter != nil {
		s.monitor, err = newMonitor(cfg, pool)
		if err != nil {
			store.Close()
			pool.Close()
			return nil, fmt.Errorf("failed to build pipeline: %w", err)
		}
	}
	return s, nil
}

func newMonitor(cfg *Config, pool *worker.Pool) (*pipeline.Monitor, error) {
	netCfg := netquality.DefaultConfig()
	netCfg.Interval = cfg.Timing.Interval
	netCfg.DegradedInterval = cfg.Timing.DegradedInterval

	deps := pipeline.Deps{
		Source:        cfg.Source,
		Fingerprinter: cfg.Fingerprinter,
		Arbitrator:    recognition.NewArbitrator(cfg.Weights, cfg.Logger),
		Network:       netquality.New(netCfg),
		Pool:          pool,
		Logger:        cfg.Logger,
	}
	if cfg.Transcriber != nil && cfg.Lyrics != nil {
		deps.Transcript = &recognition.TranscriptMatcher{Transcriber: cfg.Transcriber, Corpus: cfg.Lyrics}
		if len(cfg.LyricsSources) > 0 || cfg.LyricsDir != "" {
			deps.Lyrics = &recognition.LyricsSync{
				Corpus:  cfg.Lyrics,
				Sources: cfg.LyricsSources,
				Dir:     cfg.LyricsDir,
				Logger:  cfg.Logger,
			}
			if hint, ok := cfg.Transcriber.(recognition.LanguageHinter); ok {
				deps.Lyrics.Hint = hint
			}
		}
	}
	if len(cfg.CatalogSources) > 0 {
		deps.Advisor = prediction.NewAdvisor(cfg.Logger, cfg.CatalogSources...)
	}

	pcfg := pipeline.DefaultConfig()
	pcfg.Window = cfg.Timing.Window
	pcfg.StartupGrace = cfg.Timing.StartupGrace
	pcfg.StopTimeout = cfg.Timing.StopTimeout
	return pipeline.New(deps, pcfg)
}

func (s *liveService) Start(handler DetectionHandler, targetArtist string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.monitor == nil {
		s.log.Errorf("cannot start monitoring: no audio source or fingerprinter configured")
		return false
	}
	if s.monitor.Running() {
		select {
		case <-s.monitor.Done():
			// previous capture ended on its own
			s.monitor.Stop()
		default:
			return false
		}
	}
	if s.observer != nil {
		s.observer.Close()
		s.observer = nil
	}

	observer := pipeline.NewSessionObserver(s.store, s.config.DeliveryBuffer, s.log, handler)
	if !s.monitor.Start(observer, targetArtist) {
		observer.Close()
		return false
	}
	s.observer = observer
	return true
}

func (s *liveService) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.monitor == nil || !s.monitor.Stop() {
		return false
	}
	if s.observer != nil {
		s.observer.Close()
		s.observer = nil
	}
	return true
}

func (s *liveService) Done() <-chan struct{} {
	if s.monitor == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return s.monitor.Done()
}

func (s *liveService) AddSong(c *Candidate, targetArtist string) AddResult {
	return s.store.AddSong(c, targetArtist)
}

func (s *liveService) AddManualSong(title, artist, composer string) AddResult {
	return s.store.AddManual(title, artist, composer)
}

func (s *liveService) GetPlaylist(includeDeleted bool) []SongEntry {
	return s.store.GetPlaylist(includeDeleted)
}

func (s *liveService) DeleteSong(id int64) bool {
	return s.store.DeleteSong(id)
}

func (s *liveService) ClearSession() bool {
	return s.store.ClearSession()
}

func (s *liveService) ConfirmSong(id int64, confirmed bool) bool {
	return s.store.ConfirmSong(id, confirmed)
}

func (s *liveService) UpdateSong(id int64, patch Patch) bool {
	return s.store.UpdateSong(id, patch)
}

func (s *liveService) Wait() {
	s.store.Wait()
}

// Close stops monitoring, lets pending deliveries land and closes storage.
// Enrichment still in flight is abandoned and resumes on the next start.
func (s *liveService) Close() error {
	s.Stop()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.monitor != nil {
		s.monitor.Wait()
	}
	err := s.store.Close()
	s.pool.Close()
	return err
}
