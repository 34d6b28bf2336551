package textmatch

import "time"

// Thresholds tunes Equivalent.
type Thresholds struct {
	High              float64       // above: same song whatever the artist
	Low               float64       // below: never the same song
	DurationTolerance time.Duration // last-resort corroboration window
}

// DefaultThresholds mirrors the bands used throughout the session store.
func DefaultThresholds() Thresholds {
	return Thresholds{
		High:              0.9,
		Low:               0.6,
		DurationTolerance: 3 * time.Second,
	}
}

// Track is the minimal shape Equivalent compares.
type Track struct {
	Title      string
	Artist     string
	DurationMs int
}

// Equivalent decides whether two detections represent the same real-world
// song. Exact normalised titles always match; similar titles match when the
// artist also matches, or when durations are near-identical.
func (th Thresholds) Equivalent(a, b Track) bool {
	ta, tb := Normalize(a.Title), Normalize(b.Title)
	if ta == "" || tb == "" {
		return false
	}
	if ta == tb {
		return true
	}

	sim := Similarity(ta, tb)
	if sim > th.High {
		return true
	}
	if sim < th.Low {
		return false
	}

	if artistsOverlap(a.Artist, b.Artist) {
		return true
	}
	return th.durationsAgree(a.DurationMs, b.DurationMs)
}

func artistsOverlap(a, b string) bool {
	na, nb := NormalizeArtist(a), NormalizeArtist(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || ContainsWord(na, nb) || ContainsWord(nb, na)
}

func (th Thresholds) durationsAgree(a, b int) bool {
	if a <= 0 || b <= 0 {
		return false
	}
	diff := time.Duration(a-b) * time.Millisecond
	if diff < 0 {
		diff = -diff
	}
	return diff <= th.DurationTolerance
}
