package prediction

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// NewSpotifyClient returns an app-only client authenticated with the
// client-credentials flow. Extra options (e.g. spotify.WithBaseURL) are
// passed through.
func NewSpotifyClient(ctx context.Context, clientID, clientSecret string, opts ...spotify.ClientOption) *spotify.Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return spotify.New(cfg.Client(ctx), opts...)
}

// SpotifySource contributes an artist's top tracks and the tracks of their
// newest album, which is what a current tour tends to draw from.
type SpotifySource struct {
	Client  *spotify.Client
	Country string
}

func NewSpotifySource(client *spotify.Client) *SpotifySource {
	return &SpotifySource{Client: client, Country: "IT"}
}

func (s *SpotifySource) Name() string { return "spotify" }

func (s *SpotifySource) Fetch(ctx context.Context, artist string) (Catalog, error) {
	if s.Client == nil {
		return Catalog{}, fmt.Errorf("spotify: no client")
	}

	res, err := s.Client.Search(ctx, artist, spotify.SearchTypeArtist, spotify.Limit(1))
	if err != nil {
		return Catalog{}, fmt.Errorf("spotify artist search: %w", err)
	}
	if res.Artists == nil || len(res.Artists.Artists) == 0 {
		return Catalog{}, nil
	}
	id := res.Artists.Artists[0].ID

	var c Catalog
	seen := make(map[string]bool)
	add := func(name string) {
		t := cleanTitle(name)
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		c.Titles = append(c.Titles, t)
	}

	top, err := s.Client.GetArtistsTopTracks(ctx, id, s.Country)
	if err != nil {
		return Catalog{}, fmt.Errorf("spotify top tracks: %w", err)
	}
	for _, t := range top {
		add(t.Name)
	}

	albums, err := s.Client.GetArtistAlbums(ctx, id, []spotify.AlbumType{spotify.AlbumTypeAlbum}, spotify.Limit(1))
	if err != nil {
		return c, fmt.Errorf("spotify albums: %w", err)
	}
	if len(albums.Albums) > 0 {
		tracks, err := s.Client.GetAlbumTracks(ctx, albums.Albums[0].ID)
		if err != nil {
			return c, fmt.Errorf("spotify album tracks: %w", err)
		}
		for _, t := range tracks.Tracks {
			add(t.Name)
		}
	}
	return c, nil
}
