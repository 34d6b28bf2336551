package prediction

import (
	"context"
	"strings"
)

// Catalog is what a source knows about an artist: songs that are likely to
// be played and, where available, historical running orders.
type Catalog struct {
	Titles    []string
	Sequences [][]string
}

// CatalogSource fetches a Catalog for an artist. Sources are advisory; a
// failing source never prevents the others from contributing.
type CatalogSource interface {
	Name() string
	Fetch(ctx context.Context, artist string) (Catalog, error)
}

// StaticSource serves a fixed catalog, optionally per artist.
type StaticSource struct {
	Label    string
	Default  Catalog
	ByArtist map[string]Catalog
}

func (s *StaticSource) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s *StaticSource) Fetch(_ context.Context, artist string) (Catalog, error) {
	for name, c := range s.ByArtist {
		if strings.EqualFold(name, artist) {
			return c, nil
		}
	}
	return s.Default, nil
}

// cleanTitle drops parenthesised suffixes such as "(feat. X)" or
// "(Remastered)".
func cleanTitle(name string) string {
	if i := strings.Index(name, "("); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}
