package models

import "time"

// CandidateStatus mirrors the discriminator a recognition provider returns.
type CandidateStatus string

const (
	StatusSuccess  CandidateStatus = "success"
	StatusNotFound CandidateStatus = "not_found"
	StatusError    CandidateStatus = "error"
)

// CandidateType tells where a candidate came from.
type CandidateType string

const (
	TypeOriginal CandidateType = "original"
	TypeCover    CandidateType = "cover"
	TypeHumming  CandidateType = "humming"
	TypeLyrics   CandidateType = "lyrics"
	TypeManual   CandidateType = "manual"
)

// Candidate is one match produced for a single analysis window.
type Candidate struct {
	Status     CandidateStatus
	Title      string
	Artist     string
	Album      string
	Score      float64 // 0-100 after scaling, may exceed 100 once boosted
	Type       CandidateType
	DurationMs int
	ISRC       string
	UPC        string
	Raw        map[string]any // provider metadata, used for artist tokens and enrichment
	Source     string         // "fingerprint", "transcript", "manual"
}

// Succeeded reports whether the candidate is eligible for the session.
func (c *Candidate) Succeeded() bool {
	return c != nil && c.Status == StatusSuccess && c.Title != ""
}

// AudioWindow is a contiguous block of mono PCM handed to analysis.
type AudioWindow struct {
	Samples    []float64 // normalised to [-1, 1]
	SampleRate int
	Duration   time.Duration
	CapturedAt time.Time
}

// ConfirmedDetection is a candidate that passed stability debouncing (or the
// fast track) and is ready for the session store.
type ConfirmedDetection struct {
	ID           string // uuid, for log correlation
	Candidate    Candidate
	TargetArtist string
	FastTrack    bool
	ConfirmedAt  time.Time
}

// Composer states that are not real names.
const (
	ComposerPending      = "pending lookup"
	ComposerUnknown      = "unknown"
	ComposerLookupFailed = "lookup failed"
)

// SongEntry is one row of the session playlist.
type SongEntry struct {
	ID         int64
	Title      string
	Artist     string
	Composer   string
	Album      string
	CoverURL   string
	Score      float64
	Type       CandidateType
	DurationMs int
	ISRC       string
	UPC        string
	Timestamp  time.Time

	// Snapshot taken at creation. Title and artist never change afterwards;
	// a pending composer is filled once by the first committed lookup.
	OriginalTitle    string
	OriginalArtist   string
	OriginalComposer string

	Confirmed bool
	IsDeleted bool
	Manual    bool
}

// Pending reports whether the composer is still waiting for enrichment.
func (e *SongEntry) Pending() bool {
	return e.Composer == ComposerPending
}

// AddStatus is the outcome of adding a detection to the session.
type AddStatus string

const (
	Added    AddStatus = "added"
	Updated  AddStatus = "updated"
	Rejected AddStatus = "rejected"
)

// AddResult is returned by the session store for every AddSong call.
type AddResult struct {
	Status AddStatus
	Reason string
	Entry  *SongEntry // copy; nil when rejected without a matching entry
}
