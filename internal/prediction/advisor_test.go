package prediction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/LiveSetlist/pkg/logger"
)

type failingSource struct{}

func (failingSource) Name() string { return "failing" }
func (failingSource) Fetch(context.Context, string) (Catalog, error) {
	return Catalog{}, errors.New("unavailable")
}

func newTestAdvisor(t *testing.T, c Catalog) *Advisor {
	t.Helper()
	a := NewAdvisor(logger.Nop(), &StaticSource{Default: c}, failingSource{})
	require.NoError(t, a.Rebuild(context.Background(), "Queen"))
	require.True(t, a.Ready())
	return a
}

func TestIsLikely(t *testing.T) {
	a := newTestAdvisor(t, Catalog{Titles: []string{
		"Bohemian Rhapsody", "One", "Don't Stop Me Now", "Somebody to Love",
	}})

	assert.True(t, a.IsLikely("Bohemian Rhapsody - Remastered 2011"))
	assert.True(t, a.IsLikely("bohemian rapsody"))
	assert.True(t, a.IsLikely("Don't Stop Me Now (Live at Wembley)"))
	assert.True(t, a.IsLikely("One"))
	assert.False(t, a.IsLikely("Someone Like You"))
	assert.False(t, a.IsLikely("Under Pressure"))
	assert.False(t, a.IsLikely(""))
}

func TestNotReadyKnowsNothing(t *testing.T) {
	a := NewAdvisor(logger.Nop())
	assert.False(t, a.Ready())
	assert.False(t, a.IsLikely("Anything"))
	assert.Empty(t, a.PredictNext("Anything"))
	assert.Empty(t, a.Expected())
}

func TestPredictNext(t *testing.T) {
	a := newTestAdvisor(t, Catalog{Sequences: [][]string{
		{"Intro", "Radio Ga Ga", "Hammer to Fall"},
		{"Intro", "Radio Ga Ga", "Under Pressure"},
		{"Intro", "Radio Ga Ga (Live)", "Hammer to Fall"},
		{"Tie A", "First", "Tie B"},
		{"Tie A", "Second"},
	}})

	assert.Equal(t, "Hammer to Fall", a.PredictNext("Radio Ga Ga"))
	assert.Equal(t, "Radio Ga Ga", a.PredictNext("intro"))
	assert.Equal(t, "First", a.PredictNext("Tie A"))
	assert.Empty(t, a.PredictNext("Hammer to Fall"))
	assert.Empty(t, a.PredictNext("Unknown"))

	assert.True(t, a.IsLikely("Under Pressure"))
	assert.Equal(t, 8, a.Size())
}

func TestSetCurrent(t *testing.T) {
	a := newTestAdvisor(t, Catalog{Sequences: [][]string{{"A Song Title", "Another Song Title"}}})
	a.SetCurrent("A Song Title")
	assert.Equal(t, "Another Song Title", a.Expected())
	a.SetCurrent("Nothing Known")
	assert.Empty(t, a.Expected())
}

func TestRebuildReplacesModel(t *testing.T) {
	src := &StaticSource{ByArtist: map[string]Catalog{
		"Queen":       {Titles: []string{"Bohemian Rhapsody"}},
		"The Beatles": {Titles: []string{"Let It Be"}},
	}}
	a := NewAdvisor(logger.Nop(), src)

	require.NoError(t, a.Rebuild(context.Background(), "queen"))
	assert.True(t, a.IsLikely("Bohemian Rhapsody"))

	require.NoError(t, a.Rebuild(context.Background(), "The Beatles"))
	assert.Equal(t, "The Beatles", a.Artist())
	assert.False(t, a.IsLikely("Bohemian Rhapsody"))
	assert.True(t, a.IsLikely("Let It Be"))
}

func TestTitlesFor(t *testing.T) {
	a := newTestAdvisor(t, Catalog{
		Titles:    []string{"Bohemian Rhapsody ", "bohemian rhapsody"},
		Sequences: [][]string{{"Radio Ga Ga", "Bohemian Rhapsody"}},
	})
	assert.Equal(t, []string{"Bohemian Rhapsody", "Radio Ga Ga"}, a.TitlesFor("QUEEN"))
	assert.Nil(t, a.TitlesFor("The Beatles"))
	assert.Nil(t, NewAdvisor(logger.Nop()).TitlesFor("Queen"))
}

func TestRebuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := NewAdvisor(logger.Nop(), &StaticSource{})
	assert.ErrorIs(t, a.Rebuild(ctx, "Queen"), context.Canceled)
	assert.False(t, a.Ready())
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Titanium", cleanTitle("Titanium (feat. Sia)"))
	assert.Equal(t, "Plain", cleanTitle(" Plain "))
}
