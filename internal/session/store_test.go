package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/himanishpuri/LiveSetlist/internal/storage"
	"github.com/himanishpuri/LiveSetlist/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryConfig{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

// funcStrategy adapts a function and counts calls.
type funcStrategy struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, q Query) (Resolution, error)
}

func (f *funcStrategy) Name() string { return f.name }

func (f *funcStrategy) Resolve(ctx context.Context, q Query) (Resolution, error) {
	f.calls.Add(1)
	return f.fn(ctx, q)
}

func composerOf(composer string) *funcStrategy {
	return &funcStrategy{name: "fixed", fn: func(context.Context, Query) (Resolution, error) {
		return Resolution{Found: true, Composer: composer}, nil
	}}
}

func newTestStore(t *testing.T, durable storage.Store, strategies ...Strategy) *Store {
	t.Helper()
	s, err := Open(durable, WithStrategies(strategies...), WithRetry(fastRetry))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func detection(title, artist string, score float64) *models.Candidate {
	return &models.Candidate{
		Status: models.StatusSuccess,
		Title:  title,
		Artist: artist,
		Score:  score,
		Type:   models.TypeOriginal,
		Source: "fingerprint",
	}
}

func TestAddSongRejectsUnsuccessful(t *testing.T) {
	s := newTestStore(t, nil)

	res := s.AddSong(nil, "")
	assert.Equal(t, models.Rejected, res.Status)
	assert.Nil(t, res.Entry)

	c := detection("Imagine", "John Lennon", 80)
	c.Status = models.StatusNotFound
	res = s.AddSong(c, "")
	assert.Equal(t, models.Rejected, res.Status)
	assert.Equal(t, ReasonNotSuccessful, res.Reason)
	assert.Empty(t, s.GetPlaylist(true))
}

func TestAddSongLiveSuffixIsDuplicate(t *testing.T) {
	s := newTestStore(t, nil, composerOf("Freddie Mercury"))

	first := s.AddSong(detection("Bohemian Rhapsody (Live at Wembley)", "Queen", 93), "Queen")
	require.Equal(t, models.Added, first.Status)

	second := s.AddSong(detection("Bohemian Rhapsody", "Queen", 80), "Queen")
	assert.Equal(t, models.Rejected, second.Status)
	assert.Equal(t, ReasonDuplicate, second.Reason)
	require.NotNil(t, second.Entry)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)

	assert.Len(t, s.GetPlaylist(false), 1)
}

func TestAddSongSmartUpgrade(t *testing.T) {
	durable := storage.NewMemoryStore()
	s := newTestStore(t, durable, &funcStrategy{name: "by-artist", fn: func(_ context.Context, q Query) (Resolution, error) {
		return Resolution{Found: true, Composer: "composer of " + q.Artist}, nil
	}})

	first := s.AddSong(detection("Imagine", "Tribute Band X", 75), "John Lennon")
	require.Equal(t, models.Added, first.Status)

	res := s.AddSong(detection("Imagine", "John Lennon", 70), "John Lennon")
	require.Equal(t, models.Updated, res.Status)
	assert.Equal(t, first.Entry.ID, res.Entry.ID)
	assert.Equal(t, "John Lennon", res.Entry.Artist)
	assert.Equal(t, 70.0, res.Entry.Score)
	assert.Equal(t, "Tribute Band X", res.Entry.OriginalArtist)

	s.Wait()
	playlist := s.GetPlaylist(false)
	require.Len(t, playlist, 1)
	assert.Equal(t, "John Lennon", playlist[0].Artist)
	assert.Equal(t, "composer of John Lennon", playlist[0].Composer)
	assert.Equal(t, first.Entry.OriginalTitle, playlist[0].OriginalTitle)
	assert.Equal(t, "Tribute Band X", playlist[0].OriginalArtist)

	rows, err := durable.List()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "John Lennon", rows[0].Artist)
	assert.Equal(t, "composer of John Lennon", rows[0].Composer)
	assert.Equal(t, "Tribute Band X", rows[0].OriginalArtist)
}

func TestUpgradeKeepsOriginalComposer(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore(), &funcStrategy{name: "by-artist", fn: func(_ context.Context, q Query) (Resolution, error) {
		return Resolution{Found: true, Composer: "composer of " + q.Artist}, nil
	}})

	first := s.AddSong(detection("Imagine", "Tribute Band X", 75), "John Lennon")
	require.Equal(t, models.Added, first.Status)
	s.Wait()
	before, ok := s.Get(first.Entry.ID)
	require.True(t, ok)
	require.Equal(t, "composer of Tribute Band X", before.OriginalComposer)

	res := s.AddSong(detection("Imagine", "John Lennon", 70), "John Lennon")
	require.Equal(t, models.Updated, res.Status)
	s.Wait()

	after, ok := s.Get(first.Entry.ID)
	require.True(t, ok)
	assert.Equal(t, "composer of John Lennon", after.Composer)
	assert.Equal(t, "composer of Tribute Band X", after.OriginalComposer)
	assert.Equal(t, "Tribute Band X", after.OriginalArtist)
	assert.Equal(t, "Imagine", after.OriginalTitle)
}

func TestAddSongNoUpgradeWhenExistingMatchesTarget(t *testing.T) {
	s := newTestStore(t, nil)

	s.AddSong(detection("Imagine", "John Lennon", 75), "John Lennon")
	res := s.AddSong(detection("Imagine", "John Lennon & Yoko Ono", 90), "John Lennon")
	assert.Equal(t, models.Rejected, res.Status)
	assert.Equal(t, "John Lennon", res.Entry.Artist)
}

func TestIdentifiedTitlesNeverDuplicateWhileActive(t *testing.T) {
	s := newTestStore(t, nil)
	titles := []string{"Zitti e buoni", "ZITTI E BUONI", "Zitti e Buoni (Live)", "Zìtti e buoni", "Zitti e buoni - Remastered"}
	for _, title := range titles {
		s.AddSong(detection(title, "Måneskin", 85), "Måneskin")
	}
	assert.Len(t, s.GetPlaylist(false), 1)
}

func TestDedupWindowIsBounded(t *testing.T) {
	s, err := Open(nil, WithDedupWindow(2))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	s.AddSong(detection("Beggin'", "Måneskin", 85), "")
	s.AddSong(detection("Coraline", "Måneskin", 85), "")
	s.AddSong(detection("Supermodel", "Måneskin", 85), "")

	res := s.AddSong(detection("Beggin'", "Måneskin", 85), "")
	assert.Equal(t, models.Added, res.Status)
}

func TestIDsStrictlyIncreasing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "session.sqlite3")
	durable, err := storage.NewSQLiteStore(dbPath)
	require.NoError(t, err)

	s, err := Open(durable, WithRetry(fastRetry))
	require.NoError(t, err)
	a := s.AddSong(detection("Beggin'", "Måneskin", 85), "")
	b := s.AddSong(detection("Coraline", "Måneskin", 85), "")
	require.True(t, s.DeleteSong(b.Entry.ID))
	c := s.AddSong(detection("Supermodel", "Måneskin", 85), "")
	assert.Less(t, a.Entry.ID, b.Entry.ID)
	assert.Less(t, b.Entry.ID, c.Entry.ID)
	require.True(t, s.DeleteSong(c.Entry.ID))
	require.NoError(t, s.Close())

	durable, err = storage.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	s2, err := Open(durable, WithRetry(fastRetry))
	require.NoError(t, err)
	t.Cleanup(func() { s2.Close() })

	d := s2.AddSong(detection("Mammamia", "Måneskin", 85), "")
	require.Equal(t, models.Added, d.Status)
	assert.Greater(t, d.Entry.ID, c.Entry.ID)

	require.True(t, s2.ClearSession())
	e := s2.AddSong(detection("Gossip", "Måneskin", 85), "")
	assert.Greater(t, e.Entry.ID, d.Entry.ID)
}

func TestDeleteSongIsSoft(t *testing.T) {
	durable := storage.NewMemoryStore()
	s := newTestStore(t, durable, composerOf("Damiano David"))

	res := s.AddSong(detection("Zitti e buoni", "Måneskin", 90), "Måneskin")
	s.Wait()

	assert.True(t, s.DeleteSong(res.Entry.ID))
	assert.False(t, s.DeleteSong(res.Entry.ID))
	assert.False(t, s.DeleteSong(999))

	assert.Empty(t, s.GetPlaylist(false))
	all := s.GetPlaylist(true)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDeleted)
	assert.Equal(t, "Zitti e buoni", all[0].OriginalTitle)
	assert.Equal(t, "Måneskin", all[0].OriginalArtist)
	assert.Equal(t, "Damiano David", all[0].OriginalComposer)

	rows, err := durable.List()
	require.NoError(t, err)
	assert.Empty(t, rows)

	// deleted entries no longer take part in dedup
	again := s.AddSong(detection("Zitti e buoni", "Måneskin", 90), "Måneskin")
	assert.Equal(t, models.Added, again.Status)
}

func TestEnrichmentFailureSentinel(t *testing.T) {
	durable := storage.NewMemoryStore()
	failing := &funcStrategy{name: "down", fn: func(context.Context, Query) (Resolution, error) {
		return Resolution{}, errors.New("connection refused")
	}}
	s := newTestStore(t, durable, failing)

	res := s.AddSong(detection("Coraline", "Måneskin", 88), "")
	assert.Equal(t, models.ComposerPending, res.Entry.Composer)
	s.Wait()

	assert.Equal(t, int32(3), failing.calls.Load())
	e, ok := s.Get(res.Entry.ID)
	require.True(t, ok)
	assert.Equal(t, models.ComposerLookupFailed, e.Composer)
	assert.NotEqual(t, models.ComposerUnknown, e.Composer)

	rows, err := durable.List()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ComposerLookupFailed, rows[0].Composer)
}

func TestEnrichmentUnknownComposer(t *testing.T) {
	s := newTestStore(t, nil, NewStaticStrategy("empty"))

	res := s.AddSong(detection("Coraline", "Måneskin", 88), "")
	s.Wait()

	e, _ := s.Get(res.Entry.ID)
	assert.Equal(t, models.ComposerUnknown, e.Composer)
}

func TestResolutionCacheSkipsLookup(t *testing.T) {
	strategy := composerOf("Brian May")
	s := newTestStore(t, nil, strategy)

	first := s.AddSong(detection("We Will Rock You", "Queen", 91), "")
	s.Wait()
	require.True(t, s.DeleteSong(first.Entry.ID))

	second := s.AddSong(detection("We Will Rock You", "Queen", 91), "")
	require.Equal(t, models.Added, second.Status)
	assert.Equal(t, "Brian May", second.Entry.Composer)
	s.Wait()
	assert.Equal(t, int32(1), strategy.calls.Load())

	require.True(t, s.ClearSession())
	third := s.AddSong(detection("We Will Rock You", "Queen", 91), "")
	assert.Equal(t, models.ComposerPending, third.Entry.Composer)
}

func TestStaleEnrichmentIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	started := make(chan struct{})
	strategy := &funcStrategy{name: "slow", fn: func(ctx context.Context, q Query) (Resolution, error) {
		if q.Artist == "Tribute Band X" {
			once.Do(func() { close(started) })
			<-release
		}
		return Resolution{Found: true, Composer: "composer of " + q.Artist}, nil
	}}
	s := newTestStore(t, nil, strategy)

	first := s.AddSong(detection("Imagine", "Tribute Band X", 75), "John Lennon")
	<-started
	upgraded := s.AddSong(detection("Imagine", "John Lennon", 70), "John Lennon")
	require.Equal(t, models.Updated, upgraded.Status)

	require.Eventually(t, func() bool {
		e, _ := s.Get(first.Entry.ID)
		return e.Composer == "composer of John Lennon"
	}, time.Second, 5*time.Millisecond)

	close(release)
	s.Wait()
	e, _ := s.Get(first.Entry.ID)
	assert.Equal(t, "composer of John Lennon", e.Composer)
}

func TestCommitIsIdempotent(t *testing.T) {
	s := newTestStore(t, nil)

	res := s.AddSong(detection("Beggin'", "Måneskin", 85), "")
	s.Wait()
	e, _ := s.Get(res.Entry.ID)
	require.Equal(t, models.ComposerUnknown, e.Composer)

	s.mu.Lock()
	gen := s.gens[res.Entry.ID]
	s.mu.Unlock()
	err := s.commit(res.Entry.ID, gen, Query{Title: "Beggin'", Artist: "Måneskin"}, Resolution{Found: true, Composer: "Bob Gaudio"}, nil)
	assert.ErrorIs(t, err, ErrNotPending)

	e, _ = s.Get(res.Entry.ID)
	assert.Equal(t, models.ComposerUnknown, e.Composer)
}

func TestRecoveryReschedulesPending(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "recover.sqlite3")
	durable, err := storage.NewSQLiteStore(dbPath)
	require.NoError(t, err)

	hang := &funcStrategy{name: "hang", fn: func(ctx context.Context, _ Query) (Resolution, error) {
		<-ctx.Done()
		return Resolution{}, ctx.Err()
	}}
	s, err := Open(durable, WithStrategies(hang), WithRetry(fastRetry))
	require.NoError(t, err)
	s.AddSong(detection("Beggin'", "Måneskin", 85), "")
	resolved := s.AddManual("Vent'anni", "Måneskin", "Damiano David")
	require.Equal(t, models.Added, resolved.Status)
	assert.True(t, resolved.Entry.Manual)
	require.NoError(t, s.Close())

	durable, err = storage.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	s2 := newTestStore(t, durable, composerOf("Bob Gaudio, Bob Crewe"))
	s2.Wait()

	playlist := s2.GetPlaylist(false)
	require.Len(t, playlist, 2)
	assert.Equal(t, "Bob Gaudio, Bob Crewe", playlist[0].Composer)
	assert.Equal(t, "Damiano David", playlist[1].Composer)

	// the recovered manual entry seeds the cache
	dup := s2.AddSong(detection("Vent'anni", "Måneskin", 85), "")
	assert.Equal(t, models.Rejected, dup.Status)
	require.True(t, s2.DeleteSong(playlist[1].ID))
	again := s2.AddSong(detection("Vent'anni", "Måneskin", 85), "")
	assert.Equal(t, "Damiano David", again.Entry.Composer)
}

func TestConfirmAndUpdateSong(t *testing.T) {
	durable := storage.NewMemoryStore()
	s := newTestStore(t, durable, composerOf("Unknown Writer"))

	res := s.AddSong(detection("Zitti e buoni", "Maneskin", 90), "")
	s.Wait()

	assert.True(t, s.ConfirmSong(res.Entry.ID, true))
	title, composer := "Zitti e buoni", "Damiano David, Ethan Torchio"
	artist := "Måneskin"
	assert.True(t, s.UpdateSong(res.Entry.ID, Patch{Title: &title, Artist: &artist, Composer: &composer}))
	assert.False(t, s.UpdateSong(42, Patch{Title: &title}))

	e, _ := s.Get(res.Entry.ID)
	assert.True(t, e.Confirmed)
	assert.Equal(t, "Måneskin", e.Artist)
	assert.Equal(t, composer, e.Composer)
	assert.Equal(t, "Maneskin", e.OriginalArtist)
	assert.Equal(t, "Unknown Writer", e.OriginalComposer)

	rows, err := durable.List()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Confirmed)
	assert.Equal(t, composer, rows[0].Composer)
	assert.Equal(t, "Maneskin", rows[0].OriginalArtist)
}

func TestAddManualValidation(t *testing.T) {
	s := newTestStore(t, nil)
	assert.Equal(t, models.Rejected, s.AddManual("", "Queen", "").Status)

	res := s.AddManual("Innuendo", "Queen", "")
	require.Equal(t, models.Added, res.Status)
	assert.Equal(t, models.TypeManual, res.Entry.Type)
	assert.Equal(t, models.ComposerPending, res.Entry.Composer)
}

func TestClosedStoreRejects(t *testing.T) {
	s, err := Open(nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	res := s.AddSong(detection("Beggin'", "Måneskin", 85), "")
	assert.Equal(t, models.Rejected, res.Status)
	assert.Equal(t, ReasonClosed, res.Reason)
}
