package lang

import (
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Max levenshtein distance that we'll suggest at.
const maxSuggestionDistance = 3

// suggestName returns the candidate that most plausibly is a misspelling of
// the given name, or the empty string when nothing is close enough.
func suggestName(name string, candidates []string) string {
	r := []rune(name)
	best := ""
	bestDistance := maxSuggestionDistance + 1
	for _, candidate := range candidates {
		if distance := levenshtein.DistanceForStrings(r, []rune(candidate), levenshtein.DefaultOptions); distance < bestDistance {
			best = candidate
			bestDistance = distance
		}
	}
	return best
}
