package livesetlist

import (
	"github.com/himanishpuri/LiveSetlist/internal/audio"
	"github.com/himanishpuri/LiveSetlist/internal/prediction"
	"github.com/himanishpuri/LiveSetlist/internal/recognition"
	"github.com/himanishpuri/LiveSetlist/internal/session"
	"github.com/himanishpuri/LiveSetlist/internal/storage"
)

// Service is a live setlist session: recognition lifecycle plus the
// playlist. Failures are logged and reported as booleans or AddResult
// statuses.
type Service interface {
	Start(handler DetectionHandler, targetArtist string) bool
	Stop() bool
	// Done is closed when the running capture ends on its own or is stopped.
	Done() <-chan struct{}

	AddSong(c *Candidate, targetArtist string) AddResult
	AddManualSong(title, artist, composer string) AddResult
	GetPlaylist(includeDeleted bool) []SongEntry
	DeleteSong(id int64) bool
	ClearSession() bool
	ConfirmSong(id int64, confirmed bool) bool
	UpdateSong(id int64, patch Patch) bool

	// Wait blocks until background enrichment has finished.
	Wait()
	Close() error
}

// Collaborator contracts, re-exported for callers that plug in their own.
type (
	Storage       = storage.Store
	Source        = audio.Source
	Fingerprinter = recognition.Fingerprinter
	Transcriber   = recognition.Transcriber
	CatalogSource = prediction.CatalogSource
	Strategy      = session.Strategy
	Weights       = recognition.Weights
	LyricsCorpus  = recognition.LyricsCorpus
	LyricsSource  = recognition.LyricsSource
)

func DefaultWeights() Weights { return recognition.DefaultWeights() }

func NewLyricsCorpus() *LyricsCorpus { return recognition.NewLyricsCorpus() }

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
