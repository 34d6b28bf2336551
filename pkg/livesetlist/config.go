package livesetlist

import (
	"time"

	"github.com/himanishpuri/LiveSetlist/internal/recognition"
	"github.com/himanishpuri/LiveSetlist/internal/storage"
)

type Timing struct {
	Window           time.Duration
	Interval         time.Duration
	DegradedInterval time.Duration
	StartupGrace     time.Duration
	StopTimeout      time.Duration
}

type Config struct {
	DBPath   string
	Backend  string
	MongoURI string
	MongoDB  string
	Storage  Storage
	Logger   Logger

	Source         Source
	Fingerprinter  Fingerprinter
	Transcriber    Transcriber
	Lyrics         *LyricsCorpus
	LyricsSources  []LyricsSource
	LyricsDir      string
	CatalogSources []CatalogSource
	Strategies     []Strategy

	Weights        Weights
	Timing         Timing
	Workers        int
	DedupWindow    int
	DeliveryBuffer int
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithBackend selects the durable store: "sqlite", "badger", "mongo" or
// "memory".
func WithBackend(backend string) Option {
	return func(c *Config) {
		c.Backend = backend
	}
}

func WithMongo(uri, database string) Option {
	return func(c *Config) {
		c.MongoURI = uri
		c.MongoDB = database
	}
}

// WithStorage uses an already opened store; the service closes it.
func WithStorage(s Storage) Option {
	return func(c *Config) {
		c.Storage = s
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithSource(src Source) Option {
	return func(c *Config) {
		c.Source = src
	}
}

func WithFingerprinter(fp Fingerprinter) Option {
	return func(c *Config) {
		c.Fingerprinter = fp
	}
}

// WithTranscriber enables lyric recognition against corpus.
func WithTranscriber(t Transcriber, corpus *LyricsCorpus) Option {
	return func(c *Config) {
		c.Transcriber = t
		c.Lyrics = corpus
	}
}

// WithLyricsSources pre-fetches lyrics of the predicted setlist into the
// transcriber's corpus when monitoring starts. A non-empty dir caches them on
// disk.
func WithLyricsSources(dir string, sources ...LyricsSource) Option {
	return func(c *Config) {
		c.LyricsDir = dir
		c.LyricsSources = append(c.LyricsSources, sources...)
	}
}

func WithCatalogSources(sources ...CatalogSource) Option {
	return func(c *Config) {
		c.CatalogSources = append(c.CatalogSources, sources...)
	}
}

func WithStrategies(strategies ...Strategy) Option {
	return func(c *Config) {
		c.Strategies = append(c.Strategies, strategies...)
	}
}

func WithWeights(w Weights) Option {
	return func(c *Config) {
		c.Weights = w
	}
}

// WithTiming overrides the non-zero fields of t.
func WithTiming(t Timing) Option {
	return func(c *Config) {
		if t.Window > 0 {
			c.Timing.Window = t.Window
		}
		if t.Interval > 0 {
			c.Timing.Interval = t.Interval
		}
		if t.DegradedInterval > 0 {
			c.Timing.DegradedInterval = t.DegradedInterval
		}
		if t.StartupGrace > 0 {
			c.Timing.StartupGrace = t.StartupGrace
		}
		if t.StopTimeout > 0 {
			c.Timing.StopTimeout = t.StopTimeout
		}
	}
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func WithDedupWindow(n int) Option {
	return func(c *Config) {
		c.DedupWindow = n
	}
}

// WithDeliveryBuffer bounds how many confirmed detections may queue for the
// session store before the oldest is dropped.
func WithDeliveryBuffer(n int) Option {
	return func(c *Config) {
		c.DeliveryBuffer = n
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:  storage.DefaultDBFile,
		Backend: storage.BackendSQLite,
		Weights: recognition.DefaultWeights(),
		Timing: Timing{
			Window:           20 * time.Second,
			Interval:         6 * time.Second,
			DegradedInterval: 10 * time.Second,
			StartupGrace:     5 * time.Second,
			StopTimeout:      15 * time.Second,
		},
		Workers:        3,
		DedupWindow:    15,
		DeliveryBuffer: 16,
	}
}
