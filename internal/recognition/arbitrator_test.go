package recognition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/LiveSetlist/pkg/logger"
	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

type fakeHints struct {
	likely   map[string]bool
	expected string
}

func (f fakeHints) IsLikely(title string) bool { return f.likely[title] }
func (f fakeHints) Expected() string           { return f.expected }

func cand(title, artist string, score float64, typ models.CandidateType) models.Candidate {
	return models.Candidate{Status: models.StatusSuccess, Title: title, Artist: artist, Score: score, Type: typ}
}

func newTestArbitrator() *Arbitrator {
	return NewArbitrator(DefaultWeights(), logger.Nop())
}

func TestArbitrateThresholds(t *testing.T) {
	a := newTestArbitrator()
	got := a.Arbitrate([]models.Candidate{
		cand("Song A", "X", 71, models.TypeOriginal),   // below music threshold
		cand("Song B", "Y", 70, models.TypeCover),      // exactly humming threshold
		cand("Song C", "Z", 72, models.TypeOriginal),   // exactly music threshold
		{Status: models.StatusNotFound, Title: "Nope"}, // ignored
	}, "", nil)

	require.Len(t, got, 2)
	assert.Equal(t, "Song C", got[0].Title)
	assert.Equal(t, "Song B", got[1].Title)
}

func TestArbitrateMergesDuplicatesBeforeThreshold(t *testing.T) {
	a := newTestArbitrator()
	got := a.Arbitrate([]models.Candidate{
		cand("Yesterday", "The Beatles", 68, models.TypeOriginal),
		cand("Yesterday (Remastered 2009)", "The Beatles", 69, models.TypeOriginal),
	}, "", nil)

	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Merged)
	assert.Equal(t, 74.0, got[0].Score) // 69 + 5 clears 72
}

func TestArbitrateSingleBoostPriority(t *testing.T) {
	a := newTestArbitrator()
	hints := fakeHints{likely: map[string]bool{"Imagine": true}, expected: "Imagine"}

	got := a.Arbitrate([]models.Candidate{cand("Imagine", "John Lennon", 75, models.TypeOriginal)}, "John Lennon", hints)
	require.Len(t, got, 1)
	assert.Equal(t, BoostWhitelist, got[0].Boost)
	assert.Equal(t, 140.0, got[0].Score)
}

func TestArbitrateArtistBoostFromRawMetadata(t *testing.T) {
	a := newTestArbitrator()
	c := cand("Zitti E Buoni", "Various Artists", 75, models.TypeOriginal)
	c.Raw = map[string]any{"contributors": map[string]any{"composers": []any{"Måneskin"}}}

	got := a.Arbitrate([]models.Candidate{c}, "Maneskin", nil)
	require.Len(t, got, 1)
	assert.Equal(t, BoostArtist, got[0].Boost)
	assert.Equal(t, 120.0, got[0].Score)
}

func TestArbitratePredictionBoost(t *testing.T) {
	a := newTestArbitrator()
	hints := fakeHints{expected: "Let It Be"}
	got := a.Arbitrate([]models.Candidate{
		cand("Let It Be - Remastered 2009", "A Tribute", 73, models.TypeOriginal),
		cand("Hey Jude", "Another Tribute", 90, models.TypeOriginal),
	}, "The Beatles", hints)

	require.Len(t, got, 2)
	assert.Equal(t, "Let It Be - Remastered 2009", got[0].Title)
	assert.Equal(t, BoostPrediction, got[0].Boost)
	assert.Equal(t, BoostNone, got[1].Boost)
}

func TestArbitratePlaceholderPenalty(t *testing.T) {
	a := newTestArbitrator()
	got := a.Arbitrate([]models.Candidate{
		cand("ID 4", "DJ", 100, models.TypeOriginal),
		cand("Real Song", "DJ", 80, models.TypeOriginal),
	}, "", nil)

	require.Len(t, got, 2)
	assert.Equal(t, "Real Song", got[0].Title)
	assert.True(t, got[1].Placeholder)
	assert.InDelta(t, 70.0, got[1].Score, 1e-9)
}

func TestBestEmpty(t *testing.T) {
	a := newTestArbitrator()
	assert.Nil(t, a.Best(nil, "", nil))
	best := a.Best([]models.Candidate{cand("Song", "X", 90, models.TypeOriginal)}, "", nil)
	require.NotNil(t, best)
	assert.Equal(t, "Song", best.Title)
}

func TestCustomWeights(t *testing.T) {
	w := DefaultWeights()
	w.ArtistBoost = 10
	a := NewArbitrator(w, logger.Nop())
	got := a.Arbitrate([]models.Candidate{cand("Song", "Queen", 80, models.TypeOriginal)}, "Queen", nil)
	require.Len(t, got, 1)
	assert.Equal(t, 90.0, got[0].Score)
}
