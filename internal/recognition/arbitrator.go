package recognition

import (
	"encoding/json"
	"sort"

	"github.com/himanishpuri/LiveSetlist/internal/textmatch"
	"github.com/himanishpuri/LiveSetlist/pkg/logger"
	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

// Weights holds every tunable magnitude the arbitrator applies.
type Weights struct {
	MusicThreshold     float64
	HummingThreshold   float64
	WhitelistBoost     float64
	ArtistBoost        float64
	PredictionBoost    float64
	MergeBonus         float64
	PlaceholderPenalty float64 // fraction removed from placeholder titles
	MergeSimilarity    float64 // title similarity above which provider duplicates merge
	PredictionMatch    float64 // title similarity needed for the prediction boost
}

func DefaultWeights() Weights {
	return Weights{
		MusicThreshold:     72,
		HummingThreshold:   70,
		WhitelistBoost:     65,
		ArtistBoost:        45,
		PredictionBoost:    80,
		MergeBonus:         5,
		PlaceholderPenalty: 0.30,
		MergeSimilarity:    0.9,
		PredictionMatch:    0.85,
	}
}

// Hints is what the arbitrator needs from the prediction advisor.
type Hints interface {
	IsLikely(title string) bool
	Expected() string
}

type Boost string

const (
	BoostNone       Boost = ""
	BoostWhitelist  Boost = "whitelist"
	BoostArtist     Boost = "artist"
	BoostPrediction Boost = "prediction"
)

// Scored is a candidate with the reasoning behind its final score.
type Scored struct {
	models.Candidate
	BaseScore   float64
	Merged      int
	Boost       Boost
	Placeholder bool
}

type Arbitrator struct {
	w   Weights
	log logger.Leveled
}

func NewArbitrator(w Weights, log logger.Leveled) *Arbitrator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Arbitrator{w: w, log: log}
}

func (a *Arbitrator) Weights() Weights { return a.w }

// Arbitrate merges, filters, boosts and ranks the candidates of one window.
// hints may be nil. The result is sorted best first.
func (a *Arbitrator) Arbitrate(cands []models.Candidate, targetArtist string, hints Hints) []Scored {
	merged := a.merge(cands)

	kept := merged[:0]
	for _, s := range merged {
		if s.Score < a.threshold(s.Type) {
			continue
		}
		kept = append(kept, s)
	}

	for i := range kept {
		a.boost(&kept[i], targetArtist, hints)
		if textmatch.IsPlaceholderTitle(kept[i].Title) {
			kept[i].Placeholder = true
			kept[i].Score *= 1 - a.w.PlaceholderPenalty
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })

	for _, s := range kept {
		a.log.Debugf("candidate %q by %q base=%.0f final=%.0f boost=%s merged=%d", s.Title, s.Artist, s.BaseScore, s.Score, s.Boost, s.Merged)
	}
	return kept
}

// Best returns the winning candidate, or nil when nothing survived.
func (a *Arbitrator) Best(cands []models.Candidate, targetArtist string, hints Hints) *models.Candidate {
	ranked := a.Arbitrate(cands, targetArtist, hints)
	if len(ranked) == 0 {
		return nil
	}
	best := ranked[0].Candidate
	return &best
}

func (a *Arbitrator) threshold(t models.CandidateType) float64 {
	switch t {
	case models.TypeOriginal:
		return a.w.MusicThreshold
	case models.TypeCover, models.TypeHumming:
		return a.w.HummingThreshold
	default:
		return 0
	}
}

// merge collapses provider-side duplicates (same song listed twice, often
// once per section) into the best-scoring copy plus MergeBonus.
func (a *Arbitrator) merge(cands []models.Candidate) []Scored {
	out := make([]Scored, 0, len(cands))
	for _, c := range cands {
		if !c.Succeeded() {
			continue
		}
		idx := -1
		for i := range out {
			if a.sameTrack(out[i].Candidate, c) {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, Scored{Candidate: c, BaseScore: c.Score, Merged: 1})
			continue
		}
		s := &out[idx]
		s.Merged++
		if c.Score > s.BaseScore {
			s.Candidate = c
			s.BaseScore = c.Score
		}
	}
	for i := range out {
		if out[i].Merged > 1 {
			out[i].Score = out[i].BaseScore + a.w.MergeBonus
		}
	}
	return out
}

func (a *Arbitrator) sameTrack(x, y models.Candidate) bool {
	tx, ty := textmatch.Normalize(x.Title), textmatch.Normalize(y.Title)
	if tx == "" || ty == "" {
		return false
	}
	if tx != ty && textmatch.Similarity(tx, ty) <= a.w.MergeSimilarity {
		return false
	}
	return textmatch.NormalizeArtist(x.Artist) == textmatch.NormalizeArtist(y.Artist) ||
		textmatch.ArtistMatches(x.Artist, y.Artist)
}

// boost applies at most one boost, in priority order.
func (a *Arbitrator) boost(s *Scored, targetArtist string, hints Hints) {
	switch {
	case hints != nil && hints.IsLikely(s.Title):
		s.Boost = BoostWhitelist
		s.Score += a.w.WhitelistBoost
	case targetArtist != "" && a.artistMatches(s.Candidate, targetArtist):
		s.Boost = BoostArtist
		s.Score += a.w.ArtistBoost
	case hints != nil && a.predicted(s.Title, hints.Expected()):
		s.Boost = BoostPrediction
		s.Score += a.w.PredictionBoost
	}
}

func (a *Arbitrator) artistMatches(c models.Candidate, target string) bool {
	if textmatch.ArtistMatches(target, c.Artist) {
		return true
	}
	if len(c.Raw) == 0 {
		return false
	}
	raw, err := json.Marshal(c.Raw)
	if err != nil {
		return false
	}
	return textmatch.ArtistInText(target, string(raw))
}

func (a *Arbitrator) predicted(title, expected string) bool {
	if expected == "" {
		return false
	}
	nt, ne := textmatch.Normalize(title), textmatch.Normalize(expected)
	return nt != "" && (nt == ne || textmatch.Similarity(nt, ne) > a.w.PredictionMatch)
}
