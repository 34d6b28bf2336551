package recognition

import (
	"github.com/himanishpuri/LiveSetlist/internal/textmatch"
	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

type DecisionConfig struct {
	FastTrackScore     float64 // both signals at or above: skip stability
	TranscriptWinScore float64 // transcript overrides the fingerprint at or above
	Equivalence        textmatch.Thresholds
}

func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		FastTrackScore:     90,
		TranscriptWinScore: 95,
		Equivalence:        textmatch.DefaultThresholds(),
	}
}

type Decision struct {
	Candidate *models.Candidate
	FastTrack bool
}

// Decide picks between the fingerprint winner and the transcript match
// (either may be nil). The fingerprint is the default answer.
func Decide(fingerprint, transcript *models.Candidate, cfg DecisionConfig) Decision {
	if fingerprint != nil && transcript != nil &&
		fingerprint.Score >= cfg.FastTrackScore && transcript.Score >= cfg.FastTrackScore &&
		cfg.Equivalence.Equivalent(track(fingerprint), track(transcript)) {
		return Decision{Candidate: fingerprint, FastTrack: true}
	}

	if transcript != nil && transcript.Score >= cfg.TranscriptWinScore &&
		(fingerprint == nil || fingerprint.Score < transcript.Score) {
		return Decision{Candidate: transcript}
	}
	return Decision{Candidate: fingerprint}
}

func track(c *models.Candidate) textmatch.Track {
	return textmatch.Track{Title: c.Title, Artist: c.Artist, DurationMs: c.DurationMs}
}
