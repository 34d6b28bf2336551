package recognition

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/LiveSetlist/pkg/logger"
)

const coraliLyrics = `Siamo fuori di testa ma diversi da loro
e tu sei fuori di testa ma diversa da loro
siamo fuori di testa ma diversi da loro
noi non ci fermeremo mai e poi mai`

type mapLyrics struct {
	name  string
	mu    sync.Mutex
	songs map[string]string
	calls []string
	err   error
}

func (m *mapLyrics) Name() string { return m.name }

func (m *mapLyrics) Fetch(_ context.Context, artist, title string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, title)
	if m.err != nil {
		return "", m.err
	}
	if l, ok := m.songs[title]; ok {
		return l, nil
	}
	return "", ErrNoLyrics
}

func (m *mapLyrics) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type recordedHint struct {
	mu    sync.Mutex
	codes []string
}

func (h *recordedHint) SetLanguage(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.codes = append(h.codes, code)
}

func TestLyricsOVHFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/Måneskin/Zitti e buoni":
			w.Write([]byte(`{"lyrics": "Loro non sanno di che parlo"}`))
		case "/v1/Måneskin/Empty":
			w.Write([]byte(`{"lyrics": "  "}`))
		case "/v1/Måneskin/Broken":
			http.Error(w, "oops", http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "No lyrics found"}`))
		}
	}))
	defer srv.Close()

	src := NewLyricsOVHSource(srv.URL, 0)
	assert.Equal(t, "lyrics.ovh", src.Name())

	lyrics, err := src.Fetch(context.Background(), "Måneskin", "Zitti e buoni (Live)")
	require.NoError(t, err)
	assert.Equal(t, "Loro non sanno di che parlo", lyrics)

	_, err = src.Fetch(context.Background(), "Måneskin", "Unknown")
	assert.ErrorIs(t, err, ErrNoLyrics)
	_, err = src.Fetch(context.Background(), "Måneskin", "Empty")
	assert.ErrorIs(t, err, ErrNoLyrics)
	_, err = src.Fetch(context.Background(), "Måneskin", "Broken")
	assert.ErrorContains(t, err, "502")
	_, err = src.Fetch(context.Background(), "", "Zitti e buoni")
	assert.ErrorIs(t, err, ErrNoLyrics)
}

func TestLyricsSyncFillsCorpusAndCache(t *testing.T) {
	dir := t.TempDir()
	down := &mapLyrics{name: "down", err: errors.New("connection refused")}
	src := &mapLyrics{name: "map", songs: map[string]string{
		"Zitti e buoni": zittiLyrics,
		"Coraline":      coraliLyrics,
	}}
	hint := &recordedHint{}
	corpus := NewLyricsCorpus()
	ls := &LyricsSync{
		Corpus:  corpus,
		Sources: []LyricsSource{down, src},
		Dir:     dir,
		Hint:    hint,
		Logger:  logger.Nop(),
	}

	n, err := ls.Sync(context.Background(), "Måneskin", []string{"Zitti e buoni", "Coraline", "Missing Song"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, corpus.Len("Måneskin"))
	assert.True(t, corpus.Has("Maneskin", "zitti e buoni"))
	assert.Equal(t, []string{"ita"}, hint.codes)

	cached, err := os.ReadFile(filepath.Join(dir, "Måneskin", "Zitti e buoni.txt"))
	require.NoError(t, err)
	assert.Equal(t, zittiLyrics, string(cached))

	// A second run reads the cache and fetches nothing already known.
	fresh := NewLyricsCorpus()
	again := &LyricsSync{Corpus: fresh, Sources: []LyricsSource{src}, Dir: dir, Logger: logger.Nop()}
	before := len(src.Calls())
	n, err = again.Sync(context.Background(), "Måneskin", []string{"Zitti e buoni", "Coraline"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, fresh.Len("Måneskin"))
	assert.Len(t, src.Calls(), before)
}

func TestLyricsSyncCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hint := &recordedHint{}
	ls := &LyricsSync{
		Corpus:  NewLyricsCorpus(),
		Sources: []LyricsSource{&mapLyrics{name: "map"}},
		Hint:    hint,
		Logger:  logger.Nop(),
	}
	_, err := ls.Sync(ctx, "Måneskin", []string{"Zitti e buoni"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, hint.codes)
}

func TestDominantLanguage(t *testing.T) {
	assert.Equal(t, "ita", DominantLanguage([]string{zittiLyrics, coraliLyrics, "I wanna be your slave, I wanna be your master"}))
	assert.Equal(t, "eng", DominantLanguage([]string{"I wanna be your slave, I wanna be your master, I wanna make your heartbeat run like rollercoasters"}))
	assert.Empty(t, DominantLanguage([]string{"Oh", "(Live)", ""}))
	assert.Empty(t, DominantLanguage(nil))
}
