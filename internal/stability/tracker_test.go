package stability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

func c(title, artist string) *models.Candidate {
	return &models.Candidate{Status: models.StatusSuccess, Title: title, Artist: artist, Score: 80}
}

func TestSingleSightingNeverForwarded(t *testing.T) {
	tr := New(DefaultConfig())
	assert.Nil(t, tr.Observe(c("Imagine", "John Lennon")))
	for i := 0; i < 12; i++ {
		assert.Nil(t, tr.Observe(nil))
	}
	assert.Equal(t, DefaultSize, tr.Len())
}

func TestTwoNonConsecutiveSightingsForwardOnce(t *testing.T) {
	tr := New(DefaultConfig())
	assert.Nil(t, tr.Observe(c("Imagine", "John Lennon")))
	assert.Nil(t, tr.Observe(nil))
	assert.Nil(t, tr.Observe(c("Yesterday", "The Beatles")))

	got := tr.Observe(c("Imagine (Live)", "John Lennon"))
	require.NotNil(t, got)
	assert.Equal(t, "Imagine (Live)", got.Title)

	// further sightings while the earlier ones are still remembered
	assert.Nil(t, tr.Observe(c("Imagine", "John Lennon")))
	assert.Nil(t, tr.Observe(c("Imagine", "John Lennon")))
}

func TestForwardedAgainAfterRollingOut(t *testing.T) {
	tr := New(Config{Size: 3, Required: 2})
	tr.Observe(c("Imagine", "John Lennon"))
	require.NotNil(t, tr.Observe(c("Imagine", "John Lennon")))

	tr.Observe(nil)
	tr.Observe(nil)
	tr.Observe(nil) // every Imagine has rolled out

	assert.Nil(t, tr.Observe(c("Imagine", "John Lennon")))
	assert.NotNil(t, tr.Observe(c("Imagine", "John Lennon")))
}

func TestUnsuccessfulCandidatesCountAsEmpty(t *testing.T) {
	tr := New(DefaultConfig())
	bad := &models.Candidate{Status: models.StatusNotFound, Title: "Imagine"}
	assert.Nil(t, tr.Observe(bad))
	assert.Nil(t, tr.Observe(bad))
	assert.Nil(t, tr.Observe(c("Imagine", "John Lennon")))
}

func TestReset(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Observe(c("Imagine", "John Lennon"))
	tr.Reset()
	assert.Equal(t, 0, tr.Len())
	assert.Nil(t, tr.Observe(c("Imagine", "John Lennon")))
}

func TestObserveDoesNotAliasInput(t *testing.T) {
	tr := New(DefaultConfig())
	in := c("Imagine", "John Lennon")
	tr.Observe(in)
	in.Title = "Changed"
	got := tr.Observe(c("Imagine", "John Lennon"))
	require.NotNil(t, got)
}
