// Package textmatch holds the title/artist normalisation and fuzzy comparison
// helpers shared by the arbitrator, the prediction advisor, the stability
// tracker and the session store.
package textmatch

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	bracketRe     = regexp.MustCompile(`[\(\[\{][^\)\]\}]*[\)\]\}]`)
	punctRe       = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	spaceRe       = regexp.MustCompile(`\s+`)
	featRe        = regexp.MustCompile(`\s(feat\.?|ft\.?|featuring)\s.*$`)
	placeholderRe = regexp.MustCompile(`(?i)^\s*(id|track)\s*[-_#.:]?\s*\d+\s*$`)
)

// noiseTokens are qualifier words that never distinguish two recordings of
// the same song.
var noiseTokens = map[string]bool{
	"feat":       true,
	"ft":         true,
	"featuring":  true,
	"live":       true,
	"remix":      true,
	"remaster":   true,
	"remastered": true,
	"edit":       true,
	"version":    true,
	"radio":      true,
	"mono":       true,
	"stereo":     true,
}

// StripDiacritics removes combining marks ("Tiësto" -> "Tiesto").
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize folds a title for comparison: diacritics, case, bracketed
// qualifiers, "- Remastered 2011" style suffixes, featured artists,
// punctuation and noise tokens are all removed.
func Normalize(s string) string {
	s = strings.ToLower(StripDiacritics(s))
	s = bracketRe.ReplaceAllString(s, " ")

	if idx := strings.Index(s, " - "); idx > 0 {
		if hasNoise(s[idx+3:]) {
			s = s[:idx]
		}
	}

	s = featRe.ReplaceAllString(" "+s+" ", "")
	s = punctRe.ReplaceAllString(s, " ")

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if noiseTokens[w] {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		// A title made only of noise ("Live") is still a title.
		return strings.Join(words, " ")
	}
	return strings.Join(kept, " ")
}

// NormalizeArtist folds an artist name. Unlike titles the words after
// "feat." are kept since they are artist tokens.
func NormalizeArtist(s string) string {
	s = strings.ToLower(StripDiacritics(s))
	s = bracketRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&", " and ")
	s = punctRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func hasNoise(s string) bool {
	for _, w := range strings.Fields(punctRe.ReplaceAllString(s, " ")) {
		if noiseTokens[w] {
			return true
		}
	}
	return false
}

// Similarity returns a 0..1 edit-distance ratio between two already
// normalised strings.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0
	}
	return float64(sim)
}

// TitleSimilarity normalises both titles before comparing them.
func TitleSimilarity(a, b string) float64 {
	return Similarity(Normalize(a), Normalize(b))
}

// Tokens splits a normalised artist name into words.
func Tokens(s string) []string {
	return strings.Fields(NormalizeArtist(s))
}

// ContainsWord reports whether needle occurs in haystack on word boundaries.
// Both arguments are expected to be normalised.
func ContainsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// ArtistMatches reports whether the detected artist refers to the target
// artist: equal names, one containing the other on word boundaries, or every
// target token present in the detected name.
func ArtistMatches(target, artist string) bool {
	t := NormalizeArtist(target)
	a := NormalizeArtist(artist)
	if t == "" || a == "" {
		return false
	}
	if t == a || ContainsWord(a, t) || ContainsWord(t, a) {
		return true
	}
	tokens := strings.Fields(t)
	for _, tok := range tokens {
		if !ContainsWord(a, tok) {
			return false
		}
	}
	return len(tokens) > 0
}

// ArtistInText reports whether the target artist appears somewhere in a free
// text blob, e.g. serialised provider metadata.
func ArtistInText(target, text string) bool {
	t := NormalizeArtist(target)
	if t == "" {
		return false
	}
	return ContainsWord(Fold(text), t)
}

// Fold lowercases and strips diacritics and punctuation without touching
// bracketed segments.
func Fold(s string) string {
	s = strings.ToLower(StripDiacritics(s))
	s = punctRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// IsPlaceholderTitle reports titles such as "ID 4" or "Track 12" that
// providers return for unreleased tracks.
func IsPlaceholderTitle(title string) bool {
	return placeholderRe.MatchString(title)
}

// Key builds the "title–artist" key used by the session resolution cache.
func Key(title, artist string) string {
	return Normalize(title) + "–" + NormalizeArtist(artist)
}
