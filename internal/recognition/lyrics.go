package recognition

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/himanishpuri/LiveSetlist/internal/textmatch"
	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

const (
	minTranscriptChars = 15
	minKeywordLen      = 4 // words must be longer than three characters
	minKeywords        = 3
	keywordRatio       = 0.65
)

var unsafeFileChars = regexp.MustCompile(`[\\/*?:"<>|]`)

type lyricsDoc struct {
	title string
	text  string          // folded
	words map[string]bool // folded word set
}

// LyricsCorpus holds lyrics per artist for transcript matching.
type LyricsCorpus struct {
	mu    sync.RWMutex
	songs map[string][]lyricsDoc // keyed by normalised artist
}

func NewLyricsCorpus() *LyricsCorpus {
	return &LyricsCorpus{songs: make(map[string][]lyricsDoc)}
}

// Add registers (or replaces) one song's lyrics.
func (c *LyricsCorpus) Add(artist, title, lyrics string) {
	key := textmatch.NormalizeArtist(artist)
	folded := textmatch.Fold(lyrics)
	doc := lyricsDoc{title: title, text: folded, words: make(map[string]bool)}
	for _, w := range strings.Fields(folded) {
		doc.words[w] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	docs := c.songs[key]
	for i := range docs {
		if textmatch.Normalize(docs[i].title) == textmatch.Normalize(title) {
			docs[i] = doc
			return
		}
	}
	c.songs[key] = append(docs, doc)
}

// Len reports how many songs are known for artist.
func (c *LyricsCorpus) Len(artist string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.songs[textmatch.NormalizeArtist(artist)])
}

// Has reports whether lyrics for title are already known for artist.
func (c *LyricsCorpus) Has(artist, title string) bool {
	want := textmatch.Normalize(title)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.songs[textmatch.NormalizeArtist(artist)] {
		if textmatch.Normalize(d.title) == want {
			return true
		}
	}
	return false
}

// SafeName strips characters that cannot appear in a lyrics cache path.
func SafeName(name string) string {
	return strings.TrimSpace(unsafeFileChars.ReplaceAllString(name, ""))
}

// LoadDir reads a lyrics cache laid out as <root>/<artist>/<title>.txt.
// A missing root is not an error.
func (c *LyricsCorpus) LoadDir(root string) error {
	artists, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading lyrics dir: %w", err)
	}
	for _, a := range artists {
		if !a.IsDir() {
			continue
		}
		if err := c.loadArtistDir(filepath.Join(root, a.Name()), a.Name()); err != nil {
			return err
		}
	}
	return nil
}

// LoadArtist reads only the given artist's folder from the cache root.
func (c *LyricsCorpus) LoadArtist(root, artist string) error {
	dir := filepath.Join(root, SafeName(artist))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return c.loadArtistDir(dir, artist)
}

func (c *LyricsCorpus) loadArtistDir(dir, artist string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading lyrics for %s: %w", artist, err)
	}
	for _, f := range files {
		if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return fmt.Errorf("reading lyrics file %s: %w", f.Name(), err)
		}
		title := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))
		c.Add(artist, title, string(data))
	}
	return nil
}

// Match looks a transcript up in the artist's lyrics. An exact phrase hit
// scores 100; otherwise the share of significant transcript words found in
// a song must exceed keywordRatio and becomes the score.
func (c *LyricsCorpus) Match(transcript, artist string) *models.Candidate {
	phrase := textmatch.Fold(transcript)
	if len([]rune(phrase)) < minTranscriptChars {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	docs := c.songs[textmatch.NormalizeArtist(artist)]
	if len(docs) == 0 {
		return nil
	}

	for _, d := range docs {
		if strings.Contains(d.text, phrase) {
			return lyricsCandidate(d.title, artist, 100)
		}
	}

	var keywords []string
	for _, w := range strings.Fields(phrase) {
		if len([]rune(w)) >= minKeywordLen {
			keywords = append(keywords, w)
		}
	}
	if len(keywords) < minKeywords {
		return nil
	}

	bestRatio, best := 0.0, -1
	for i, d := range docs {
		hits := 0
		for _, w := range keywords {
			if d.words[w] {
				hits++
			}
		}
		ratio := float64(hits) / float64(len(keywords))
		if ratio > bestRatio {
			bestRatio, best = ratio, i
		}
	}
	if best < 0 || bestRatio <= keywordRatio {
		return nil
	}
	return lyricsCandidate(docs[best].title, artist, float64(int(bestRatio*100)))
}

func lyricsCandidate(title, artist string, score float64) *models.Candidate {
	return &models.Candidate{
		Status: models.StatusSuccess,
		Title:  title,
		Artist: artist,
		Score:  score,
		Type:   models.TypeLyrics,
		Source: "transcript",
	}
}
