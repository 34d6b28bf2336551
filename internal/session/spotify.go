package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

// SpotifyCoverStrategy looks up album art. It never knows composers.
type SpotifyCoverStrategy struct {
	Client *spotify.Client
}

func NewSpotifyCoverStrategy(client *spotify.Client) *SpotifyCoverStrategy {
	return &SpotifyCoverStrategy{Client: client}
}

func (s *SpotifyCoverStrategy) Name() string { return "spotify-cover" }

func (s *SpotifyCoverStrategy) Resolve(ctx context.Context, q Query) (Resolution, error) {
	if s.Client == nil {
		return Resolution{}, errors.New("spotify: no client")
	}
	query := fmt.Sprintf("track:%s artist:%s", q.Title, q.Artist)
	res, err := s.Client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return Resolution{}, fmt.Errorf("spotify track search: %w", err)
	}
	if res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
		return Resolution{}, nil
	}
	images := res.Tracks.Tracks[0].Album.Images
	if len(images) == 0 {
		return Resolution{Found: true}, nil
	}
	return Resolution{Found: true, Cover: images[0].URL}, nil
}
