package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultSetlistFMURL = "https://api.setlist.fm/rest/1.0"
	setlistCandidates   = 3
	setlistConcerts     = 3
)

// SetlistFMSource derives running orders from an artist's recent concerts.
// Homonymous artists are tried in relevance order until one of them has
// concerts with songs.
type SetlistFMSource struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewSetlistFMSource(apiKey string) *SetlistFMSource {
	return &SetlistFMSource{
		APIKey:     apiKey,
		BaseURL:    DefaultSetlistFMURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *SetlistFMSource) Name() string { return "setlist.fm" }

type setlistArtist struct {
	MBID           string `json:"mbid"`
	Name           string `json:"name"`
	Disambiguation string `json:"disambiguation"`
}

type setlistPage struct {
	Setlist []struct {
		EventDate string `json:"eventDate"`
		Sets      struct {
			Set []struct {
				Song []struct {
					Name string `json:"name"`
				} `json:"song"`
			} `json:"set"`
		} `json:"sets"`
	} `json:"setlist"`
}

func (s *SetlistFMSource) Fetch(ctx context.Context, artist string) (Catalog, error) {
	if s.APIKey == "" {
		return Catalog{}, fmt.Errorf("setlist.fm: missing api key")
	}

	var search struct {
		Artist []setlistArtist `json:"artist"`
	}
	q := url.Values{"artistName": {artist}, "sort": {"relevance"}}
	found, err := s.get(ctx, "/search/artists?"+q.Encode(), &search)
	if err != nil || !found {
		return Catalog{}, err
	}

	candidates := search.Artist
	if len(candidates) > setlistCandidates {
		candidates = candidates[:setlistCandidates]
	}
	for _, a := range candidates {
		if a.MBID == "" {
			continue
		}
		var page setlistPage
		found, err := s.get(ctx, "/artist/"+url.PathEscape(a.MBID)+"/setlists", &page)
		if err != nil {
			return Catalog{}, err
		}
		if !found {
			continue
		}
		if c := catalogFromSetlists(page); len(c.Sequences) > 0 {
			return c, nil
		}
	}
	return Catalog{}, nil
}

func catalogFromSetlists(page setlistPage) Catalog {
	var c Catalog
	for _, concert := range page.Setlist {
		var seq []string
		for _, set := range concert.Sets.Set {
			for _, song := range set.Song {
				if song.Name != "" {
					seq = append(seq, song.Name)
				}
			}
		}
		if len(seq) == 0 {
			continue
		}
		c.Sequences = append(c.Sequences, seq)
		c.Titles = append(c.Titles, seq...)
		if len(c.Sequences) >= setlistConcerts {
			break
		}
	}
	return c
}

// get decodes a JSON resource into out. A 404 is reported as found=false.
func (s *SetlistFMSource) get(ctx context.Context, path string, out any) (bool, error) {
	base := s.BaseURL
	if base == "" {
		base = DefaultSetlistFMURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("x-api-key", s.APIKey)
	req.Header.Set("Accept", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("setlist.fm request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("setlist.fm %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decoding setlist.fm response: %w", err)
	}
	return true, nil
}
