package livesetlist

import (
	"github.com/himanishpuri/LiveSetlist/internal/session"
	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

// Aliases so callers only need this package.
type (
	Candidate = models.Candidate
	SongEntry = models.SongEntry
	AddResult = models.AddResult
	AddStatus = models.AddStatus
	Detection = models.ConfirmedDetection
	Patch     = session.Patch
)

const (
	StatusSuccess = models.StatusSuccess

	TypeOriginal = models.TypeOriginal
	TypeCover    = models.TypeCover
	TypeHumming  = models.TypeHumming
	TypeLyrics   = models.TypeLyrics
	TypeManual   = models.TypeManual

	Added    = models.Added
	Updated  = models.Updated
	Rejected = models.Rejected
)

// DetectionHandler is called for every confirmed detection once the session
// store has processed it.
type DetectionHandler func(d Detection, res AddResult)
