// Package pipeline runs live recognition: capture feeds a rolling window, a
// supervisor dispatches one analysis at a time on the worker pool, and
// confirmed detections go to an Observer.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/himanishpuri/LiveSetlist/internal/audio"
	"github.com/himanishpuri/LiveSetlist/internal/netquality"
	"github.com/himanishpuri/LiveSetlist/internal/prediction"
	"github.com/himanishpuri/LiveSetlist/internal/recognition"
	"github.com/himanishpuri/LiveSetlist/internal/stability"
	"github.com/himanishpuri/LiveSetlist/internal/worker"
	"github.com/himanishpuri/LiveSetlist/pkg/logger"
	"github.com/himanishpuri/LiveSetlist/pkg/models"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Window       time.Duration
	StartupGrace time.Duration
	// StopTimeout bounds how long Stop waits for in-flight analysis. Zero
	// returns without waiting.
	StopTimeout time.Duration
	Decision    recognition.DecisionConfig
	Stability   stability.Config
	Preprocess  audio.PreprocessConfig
}

func DefaultConfig() Config {
	return Config{
		Window:       audio.DefaultWindowDuration,
		StartupGrace: audio.DefaultStartupGrace,
		Decision:     recognition.DefaultDecisionConfig(),
		Stability:    stability.DefaultConfig(),
		Preprocess:   audio.DefaultPreprocessConfig(),
	}
}

// Deps are the collaborators of a Monitor. Source and Fingerprinter are
// required; the rest default or stay disabled.
type Deps struct {
	Source        audio.Source
	Fingerprinter recognition.Fingerprinter
	Transcript    *recognition.TranscriptMatcher
	Lyrics        *recognition.LyricsSync
	Arbitrator    *recognition.Arbitrator
	Advisor       *prediction.Advisor
	Network       *netquality.Controller
	Pool          *worker.Pool
	Logger        logger.Leveled
}

type Monitor struct {
	cfg        Config
	log        logger.Leveled
	source     audio.Source
	fp         recognition.Fingerprinter
	transcript *recognition.TranscriptMatcher
	lyrics     *recognition.LyricsSync
	arb        *recognition.Arbitrator
	advisor    *prediction.Advisor
	net        *netquality.Controller
	pool       *worker.Pool
	pre        *audio.Preprocessor
	tracker    *stability.Tracker

	mu       sync.Mutex
	running  bool
	run      uint64
	cancel   context.CancelFunc
	finished chan struct{}

	bufMu sync.Mutex
	buf   *audio.RingBuffer

	analysis sync.Mutex
	tasks    sync.WaitGroup
}

func New(d Deps, cfg Config) (*Monitor, error) {
	if d.Source == nil {
		return nil, errors.New("pipeline: no audio source")
	}
	if d.Fingerprinter == nil {
		return nil, errors.New("pipeline: no fingerprinter")
	}
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.StartupGrace <= 0 {
		cfg.StartupGrace = def.StartupGrace
	}
	if cfg.Decision == (recognition.DecisionConfig{}) {
		cfg.Decision = def.Decision
	}
	if cfg.Preprocess == (audio.PreprocessConfig{}) {
		cfg.Preprocess = def.Preprocess
	}
	if d.Logger == nil {
		d.Logger = logger.GetLogger()
	}
	if d.Arbitrator == nil {
		d.Arbitrator = recognition.NewArbitrator(recognition.DefaultWeights(), d.Logger)
	}
	if d.Network == nil {
		d.Network = netquality.New(netquality.DefaultConfig())
	}
	if d.Pool == nil {
		d.Pool = worker.New(worker.DefaultSize)
	}
	finished := make(chan struct{})
	close(finished)
	return &Monitor{
		cfg:        cfg,
		log:        d.Logger,
		source:     d.Source,
		fp:         d.Fingerprinter,
		transcript: d.Transcript,
		lyrics:     d.Lyrics,
		arb:        d.Arbitrator,
		advisor:    d.Advisor,
		net:        d.Network,
		pool:       d.Pool,
		pre:        audio.NewPreprocessor(cfg.Preprocess),
		tracker:    stability.New(cfg.Stability),
		finished:   finished,
	}, nil
}

// Start begins capture and periodic analysis for targetArtist. It returns
// false if the monitor is already running or capture could not start.
func (m *Monitor) Start(observer Observer, targetArtist string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return false
	}
	if observer == nil {
		observer = ObserverFunc(func(models.ConfirmedDetection) {})
	}

	m.tracker.Reset()
	m.net.Reset()
	m.bufMu.Lock()
	m.buf = nil
	m.bufMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	sink := func(block []float64) { m.buffer().Write(block) }
	if err := m.source.Start(ctx, sink); err != nil {
		cancel()
		m.log.Errorf("starting capture: %v", err)
		return false
	}

	m.running = true
	m.run++
	m.cancel = cancel
	m.finished = make(chan struct{})

	if targetArtist != "" && (m.advisor != nil || m.lyrics != nil) {
		m.submit(ctx, func() { m.prepareArtist(ctx, targetArtist) })
	}

	go m.supervise(ctx, m.run, observer, targetArtist, m.finished)
	m.log.Infof("monitoring started (artist %q)", targetArtist)
	return true
}

// prepareArtist rebuilds the setlist prediction and then pre-fetches lyrics
// for the titles it found.
func (m *Monitor) prepareArtist(ctx context.Context, artist string) {
	var titles []string
	if m.advisor != nil {
		if err := m.advisor.Rebuild(ctx, artist); err != nil {
			if !errors.Is(err, context.Canceled) {
				m.log.Warnf("building setlist prediction for %s: %v", artist, err)
			}
			return
		}
		titles = m.advisor.TitlesFor(artist)
	}
	if m.lyrics == nil {
		return
	}
	n, err := m.lyrics.Sync(ctx, artist, titles)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.log.Warnf("fetching lyrics for %s: %v", artist, err)
		}
		return
	}
	m.log.Infof("lyrics for %s: %d fetched, %d known", artist, n, m.lyrics.Corpus.Len(artist))
}

// Stop ends capture and the supervisor. In-flight analysis finishes on its
// own; Stop waits for it up to StopTimeout.
func (m *Monitor) Stop() bool {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return false
	}
	m.running = false
	m.cancel()
	finished := m.finished
	m.mu.Unlock()

	if err := m.source.Stop(); err != nil {
		m.log.Warnf("stopping capture: %v", err)
	}
	<-finished
	m.tracker.Reset()

	if m.cfg.StopTimeout > 0 && !m.waitTimeout(m.cfg.StopTimeout) {
		m.log.Warnf("analysis still running after %s", m.cfg.StopTimeout)
	}
	m.log.Infof("monitoring stopped")
	return true
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Done is closed when the current run's supervisor exits, either through
// Stop or because the source ran out of audio.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

// Wait blocks until every dispatched analysis and rebuild has returned.
func (m *Monitor) Wait() { m.tasks.Wait() }

func (m *Monitor) Network() *netquality.Controller { return m.net }

func (m *Monitor) waitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		m.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// buffer returns the window buffer, (re)creating it when the source's sample
// rate is first known or changes.
func (m *Monitor) buffer() *audio.RingBuffer {
	rate := m.source.SampleRate()
	m.bufMu.Lock()
	defer m.bufMu.Unlock()
	if m.buf == nil || m.buf.SampleRate() != rate {
		m.buf = audio.NewRingBuffer(m.cfg.Window, rate)
	}
	return m.buf
}

func (m *Monitor) currentBuffer() *audio.RingBuffer {
	m.bufMu.Lock()
	defer m.bufMu.Unlock()
	return m.buf
}

// submit runs fn on the pool without blocking the caller.
func (m *Monitor) submit(ctx context.Context, fn func()) {
	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		done := make(chan struct{})
		if err := m.pool.Go(ctx, func() {
			defer close(done)
			fn()
		}); err != nil {
			return
		}
		<-done
	}()
}

func (m *Monitor) supervise(ctx context.Context, run uint64, observer Observer, target string, finished chan struct{}) {
	defer close(finished)
	captureDone := m.source.Done()

	timer := time.NewTimer(m.cfg.StartupGrace)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-captureDone:
			m.log.Infof("capture ended")
			return
		case <-timer.C:
			m.dispatch(run, observer, target)
			timer.Reset(m.net.Interval())
		}
	}
}

// dispatch hands the current window to the pool unless the previous
// analysis is still running, in which case the tick is skipped.
func (m *Monitor) dispatch(run uint64, observer Observer, target string) {
	if !m.analysis.TryLock() {
		m.log.Debugf("previous analysis still running, skipping tick")
		return
	}
	buf := m.currentBuffer()
	if buf == nil {
		m.analysis.Unlock()
		return
	}
	window, ok := buf.Window(m.cfg.StartupGrace)
	if !ok {
		m.analysis.Unlock()
		return
	}

	m.tasks.Add(1)
	ok = m.pool.TryGo(func() {
		defer m.tasks.Done()
		defer m.analysis.Unlock()
		m.analyze(run, window, observer, target)
	})
	if !ok {
		m.tasks.Done()
		m.analysis.Unlock()
		m.log.Debugf("worker pool busy, skipping tick")
	}
}

func (m *Monitor) analyze(run uint64, window models.AudioWindow, observer Observer, target string) {
	degraded := m.net.Degraded()
	processed := m.pre.Process(window, degraded)
	wav, err := audio.EncodeWAV(processed)
	if err != nil {
		m.log.Errorf("encoding window: %v", err)
		return
	}

	var (
		result recognition.Result
		lyric  *models.Candidate
	)
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		err := m.net.Measure(func() error {
			var err error
			result, err = m.fp.Identify(ctx, wav)
			return err
		})
		if err != nil {
			m.log.Warnf("no detection this window: %v (%s)", err, m.net.Snapshot())
		}
		return nil
	})
	if m.transcript != nil {
		g.Go(func() error {
			c, err := m.transcript.Match(ctx, wav, target)
			if err != nil && !errors.Is(err, recognition.ErrNoMatch) {
				m.log.Warnf("transcript match: %v", err)
			}
			lyric = c
			return nil
		})
	}
	_ = g.Wait()

	var best *models.Candidate
	if result.Status == models.StatusSuccess {
		var hints recognition.Hints
		if m.advisor != nil {
			hints = m.advisor
		}
		best = m.arb.Best(result.Candidates, target, hints)
	}

	decision := recognition.Decide(best, lyric, m.cfg.Decision)
	var confirmed *models.Candidate
	if decision.FastTrack {
		m.tracker.Reset()
		confirmed = decision.Candidate
	} else {
		confirmed = m.tracker.Observe(decision.Candidate)
	}
	if confirmed == nil {
		return
	}
	if !m.current(run) {
		m.log.Debugf("run ended, not delivering %s", confirmed.Title)
		return
	}

	det := models.ConfirmedDetection{
		ID:           uuid.NewString(),
		Candidate:    *confirmed,
		TargetArtist: target,
		FastTrack:    decision.FastTrack,
		ConfirmedAt:  time.Now(),
	}
	m.log.Infof("confirmed %s - %s (score %.0f, fast track %t, %s)", confirmed.Title, confirmed.Artist, confirmed.Score, decision.FastTrack, degradedLabel(degraded))
	observer.OnDetection(det)
	if m.advisor != nil {
		m.advisor.SetCurrent(confirmed.Title)
	}
}

func (m *Monitor) current(run uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running && m.run == run
}

func degradedLabel(degraded bool) string {
	if degraded {
		return "degraded audio"
	}
	return "full audio"
}
