package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/LiveSetlist/pkg/logger"
)

const (
	DefaultLyricsOVHURL  = "https://api.lyrics.ovh"
	DefaultLyricsTimeout = 10 * time.Second
	DefaultLyricsWorkers = 3
	languageSampleRunes  = 400
	lyricsCacheFileMode  = 0o644
	lyricsCacheDirMode   = 0o755
)

// ErrNoLyrics is returned by a LyricsSource that does not know the song.
var ErrNoLyrics = errors.New("lyrics not found")

// LyricsSource looks up the lyrics of a single song.
type LyricsSource interface {
	Name() string
	Fetch(ctx context.Context, artist, title string) (string, error)
}

// LanguageHinter accepts a detected language for later transcriptions.
type LanguageHinter interface {
	SetLanguage(code string)
}

// LyricsOVHSource queries the lyrics.ovh API.
type LyricsOVHSource struct {
	BaseURL string
	client  *http.Client
}

func NewLyricsOVHSource(baseURL string, timeout time.Duration) *LyricsOVHSource {
	if baseURL == "" {
		baseURL = DefaultLyricsOVHURL
	}
	if timeout <= 0 {
		timeout = DefaultLyricsTimeout
	}
	return &LyricsOVHSource{BaseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (s *LyricsOVHSource) Name() string { return "lyrics.ovh" }

func (s *LyricsOVHSource) Fetch(ctx context.Context, artist, title string) (string, error) {
	title = strings.TrimSpace(bracketedSuffix.ReplaceAllString(title, ""))
	if artist == "" || title == "" {
		return "", ErrNoLyrics
	}
	u := strings.TrimRight(s.BaseURL, "/") + "/v1/" + url.PathEscape(artist) + "/" + url.PathEscape(title)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("building lyrics request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("lyrics request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading lyrics response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNoLyrics
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("lyrics request: status %d", resp.StatusCode)
	}

	var out struct {
		Lyrics string `json:"lyrics"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding lyrics response: %w", err)
	}
	if strings.TrimSpace(out.Lyrics) == "" {
		return "", ErrNoLyrics
	}
	return out.Lyrics, nil
}

// LyricsSync fills a corpus with the lyrics of an artist's likely songs and
// points the transcriber at the language they are sung in. Dir, when set, is
// the <Dir>/<artist>/<title>.txt cache read before fetching and written with
// every fetched song.
type LyricsSync struct {
	Corpus  *LyricsCorpus
	Sources []LyricsSource
	Dir     string
	Hint    LanguageHinter
	Workers int
	Logger  logger.Leveled
}

// Sync loads the artist's cached lyrics, fetches the titles still missing and
// updates the language hint. It returns how many songs were fetched. A song
// no source knows is skipped; only cancellation is an error.
func (s *LyricsSync) Sync(ctx context.Context, artist string, titles []string) (int, error) {
	log := s.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if s.Corpus == nil || artist == "" {
		return 0, nil
	}
	if s.Dir != "" {
		if err := s.Corpus.LoadArtist(s.Dir, artist); err != nil {
			log.Warnf("loading cached lyrics for %s: %v", artist, err)
		}
	}

	workers := s.Workers
	if workers <= 0 {
		workers = DefaultLyricsWorkers
	}
	// One vote per song: the lyrics when fetched, the title otherwise.
	votes := make([]string, len(titles))
	copy(votes, titles)

	var fetched atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, title := range titles {
		if len(s.Sources) == 0 || s.Corpus.Has(artist, title) {
			continue
		}
		g.Go(func() error {
			lyrics, err := s.fetch(gctx, artist, title)
			if err != nil {
				log.Debugf("no lyrics for %q by %s: %v", title, artist, err)
				return nil
			}
			s.Corpus.Add(artist, title, lyrics)
			s.save(log, artist, title, lyrics)
			fetched.Add(1)
			votes[i] = sample(lyrics)
			return nil
		})
	}
	_ = g.Wait()
	n := int(fetched.Load())
	if err := ctx.Err(); err != nil {
		return n, err
	}

	if s.Hint != nil {
		code := DominantLanguage(votes)
		s.Hint.SetLanguage(code)
		if code == "" {
			log.Infof("no dominant language for %s, transcription auto-detects", artist)
		} else {
			log.Infof("dominant language for %s: %s", artist, code)
		}
	}
	return n, nil
}

func (s *LyricsSync) fetch(ctx context.Context, artist, title string) (string, error) {
	err := ErrNoLyrics
	for _, src := range s.Sources {
		lyrics, ferr := src.Fetch(ctx, artist, title)
		if ferr == nil {
			return lyrics, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !errors.Is(ferr, ErrNoLyrics) {
			err = fmt.Errorf("%s: %w", src.Name(), ferr)
		}
	}
	return "", err
}

func (s *LyricsSync) save(log logger.Leveled, artist, title, lyrics string) {
	if s.Dir == "" {
		return
	}
	name := SafeName(title)
	if name == "" {
		return
	}
	dir := filepath.Join(s.Dir, SafeName(artist))
	if err := os.MkdirAll(dir, lyricsCacheDirMode); err != nil {
		log.Warnf("creating lyrics cache %s: %v", dir, err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name+".txt"), []byte(lyrics), lyricsCacheFileMode); err != nil {
		log.Warnf("caching lyrics for %q: %v", title, err)
	}
}

// sample trims lyrics to the opening lines, enough to tell the language.
func sample(lyrics string) string {
	r := []rune(lyrics)
	if len(r) > languageSampleRunes {
		r = r[:languageSampleRunes]
	}
	return string(r)
}
