package prediction

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

func TestSetlistFMFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		switch {
		case r.URL.Path == "/search/artists":
			assert.Equal(t, "Salmo", r.URL.Query().Get("artistName"))
			w.Write([]byte(`{"artist":[{"mbid":"inactive","name":"Salmo"},{"mbid":"active","name":"Salmo"}]}`))
		case r.URL.Path == "/artist/inactive/setlists":
			w.Write([]byte(`{"setlist":[{"sets":{"set":[]}}]}`))
		case r.URL.Path == "/artist/active/setlists":
			w.Write([]byte(`{"setlist":[
				{"sets":{"set":[]}},
				{"sets":{"set":[{"song":[{"name":"90min"},{"name":"Russell Crowe"}]},{"song":[{"name":"Stai Zitta"}]}]}},
				{"sets":{"set":[{"song":[{"name":"90min"}]}]}},
				{"sets":{"set":[{"song":[{"name":"Perdonami"}]}]}},
				{"sets":{"set":[{"song":[{"name":"Too Many"}]}]}}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewSetlistFMSource("key")
	src.BaseURL = srv.URL
	c, err := src.Fetch(context.Background(), "Salmo")
	require.NoError(t, err)

	require.Len(t, c.Sequences, 3)
	assert.Equal(t, []string{"90min", "Russell Crowe", "Stai Zitta"}, c.Sequences[0])
	assert.Equal(t, []string{"Perdonami"}, c.Sequences[2])
	assert.NotContains(t, c.Titles, "Too Many")
}

func TestSetlistFMUnknownArtist(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	src := NewSetlistFMSource("key")
	src.BaseURL = srv.URL
	c, err := src.Fetch(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.Empty(t, c.Titles)
}

func TestSetlistFMNeedsKey(t *testing.T) {
	_, err := NewSetlistFMSource("").Fetch(context.Background(), "x")
	assert.Error(t, err)
}

func TestSpotifySourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/search":
			w.Write([]byte(`{"artists":{"items":[{"id":"artist1","name":"Queen"}]}}`))
		case strings.HasSuffix(r.URL.Path, "/artists/artist1/top-tracks"):
			w.Write([]byte(`{"tracks":[{"id":"t1","name":"Bohemian Rhapsody (Remastered 2011)"},{"id":"t2","name":"Don't Stop Me Now"}]}`))
		case strings.HasSuffix(r.URL.Path, "/artists/artist1/albums"):
			w.Write([]byte(`{"items":[{"id":"album1","name":"Innuendo"}]}`))
		case strings.HasSuffix(r.URL.Path, "/albums/album1/tracks"):
			w.Write([]byte(`{"items":[{"id":"t3","name":"Innuendo"},{"id":"t4","name":"Bohemian Rhapsody"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := spotify.New(http.DefaultClient, spotify.WithBaseURL(srv.URL+"/"))
	c, err := NewSpotifySource(client).Fetch(context.Background(), "Queen")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bohemian Rhapsody", "Don't Stop Me Now", "Innuendo"}, c.Titles)
	assert.Empty(t, c.Sequences)
}
