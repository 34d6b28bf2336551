package recognition

import (
	"regexp"
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// hintLanguages are the languages a transcript hint is chosen from. Anything
// else is left to the transcription service's own detection.
var hintLanguages = []lingua.Language{
	lingua.English,
	lingua.Italian,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Portuguese,
}

var languageDetector = sync.OnceValue(func() lingua.LanguageDetector {
	return lingua.NewLanguageDetectorBuilder().
		FromLanguages(hintLanguages...).
		WithMinimumRelativeDistance(0.1).
		Build()
})

var bracketedSuffix = regexp.MustCompile(`[\(\[].*?[\)\]]`)

// DominantLanguage returns the lowercase ISO 639-3 code most texts are
// written in, or "" when no text could be told apart. Bracketed parts such
// as "(Live)" are ignored and texts of three characters or fewer do not
// vote.
func DominantLanguage(texts []string) string {
	votes := make(map[lingua.Language]int)
	best, bestVotes := lingua.Unknown, 0
	for _, t := range texts {
		clean := strings.TrimSpace(bracketedSuffix.ReplaceAllString(t, ""))
		if len([]rune(clean)) <= 3 {
			continue
		}
		lang, ok := languageDetector().DetectLanguageOf(clean)
		if !ok {
			continue
		}
		votes[lang]++
		if votes[lang] > bestVotes {
			best, bestVotes = lang, votes[lang]
		}
	}
	if bestVotes == 0 {
		return ""
	}
	return strings.ToLower(best.IsoCode639_3().String())
}
