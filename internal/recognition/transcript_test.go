package recognition

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScribeTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("xi-api-key"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, DefaultScribeModel, r.FormValue("model_id"))
		assert.Equal(t, "it", r.FormValue("language_code"))
		w.Write([]byte(`{"text": "  vestiti sporchi di fango  "}`))
	}))
	defer srv.Close()

	c := NewScribeClient(ScribeConfig{APIKey: "secret", URL: srv.URL, Language: "it"})
	text, err := c.Transcribe(context.Background(), []byte("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "vestiti sporchi di fango", text)
}

func TestScribeOmitsLanguageWhenUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, ok := r.MultipartForm.Value["language_code"]
		assert.False(t, ok)
		w.Write([]byte(`{"text": "hi"}`))
	}))
	defer srv.Close()

	_, err := NewScribeClient(ScribeConfig{APIKey: "k", URL: srv.URL}).Transcribe(context.Background(), nil)
	assert.NoError(t, err)
}

func TestScribeDetectedLanguage(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		got = append(got, r.FormValue("language_code"))
		w.Write([]byte(`{"text": "hi"}`))
	}))
	defer srv.Close()

	c := NewScribeClient(ScribeConfig{APIKey: "k", URL: srv.URL})
	c.SetLanguage("ita")
	_, err := c.Transcribe(context.Background(), nil)
	require.NoError(t, err)
	c.SetLanguage("")
	_, err = c.Transcribe(context.Background(), nil)
	require.NoError(t, err)

	fixed := NewScribeClient(ScribeConfig{APIKey: "k", URL: srv.URL, Language: "eng"})
	fixed.SetLanguage("ita")
	_, err = fixed.Transcribe(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ita", "", "eng"}, got)
}

func TestScribeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewScribeClient(ScribeConfig{APIKey: "k", URL: srv.URL}).Transcribe(context.Background(), nil)
	assert.ErrorContains(t, err, "429")
}

type staticTranscriber struct {
	text string
	err  error
}

func (s staticTranscriber) Transcribe(context.Context, []byte) (string, error) { return s.text, s.err }

func TestTranscriptMatcher(t *testing.T) {
	corpus := NewLyricsCorpus()
	corpus.Add("Måneskin", "Zitti E Buoni", zittiLyrics)

	m := &TranscriptMatcher{Transcriber: staticTranscriber{text: "Giallo di siga fra le dita"}, Corpus: corpus}
	c, err := m.Match(context.Background(), nil, "Måneskin")
	require.NoError(t, err)
	assert.Equal(t, "Zitti E Buoni", c.Title)

	m.Transcriber = staticTranscriber{text: "something entirely different here"}
	_, err = m.Match(context.Background(), nil, "Måneskin")
	assert.ErrorIs(t, err, ErrNoMatch)

	boom := errors.New("boom")
	m.Transcriber = staticTranscriber{err: boom}
	_, err = m.Match(context.Background(), nil, "Måneskin")
	assert.ErrorIs(t, err, boom)

	var nilMatcher *TranscriptMatcher
	_, err = nilMatcher.Match(context.Background(), nil, "x")
	assert.ErrorIs(t, err, ErrNoMatch)
}
