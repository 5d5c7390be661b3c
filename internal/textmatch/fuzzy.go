package textmatch

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/hbollon/go-edlib"
)

const (
	// Tokens shorter than this only match exactly.
	minFuzzyLength = 4

	minSimilarity     = 0.8
	minSharedPrefix   = 6
	minPrefixTokenLen = 8
)

// Levenshtein returns the edit distance between a and b, counted in runes.
func Levenshtein(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// Similarity returns 1 - distance/maxLen for a and b, in [0, 1].
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0
	}
	return float64(sim)
}

func distanceThreshold(length int) int {
	switch {
	case length <= 5:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}

// FuzzyWordMatch reports whether two single words should be treated as the
// same word. Both inputs are folded and normalized first. Exact matches always
// succeed; words shorter than four runes never match otherwise.
func FuzzyWordMatch(a, b string) bool {
	a = NormalizeFolded(a)
	b = NormalizeFolded(b)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	if la < minFuzzyLength || lb < minFuzzyLength {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	maxLen := max(la, lb)
	if Levenshtein(a, b) <= distanceThreshold(maxLen) {
		return true
	}
	if Similarity(a, b) >= minSimilarity {
		return true
	}
	if la >= minPrefixTokenLen && lb >= minPrefixTokenLen && sharedPrefix(a, b) >= minSharedPrefix {
		return true
	}
	return false
}

func sharedPrefix(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	n := 0
	for n < len(ra) && n < len(rb) && ra[n] == rb[n] {
		n++
	}
	return n
}

// WordCoverage counts how many expected words fuzzy-match at least one of the
// candidate words.
func WordCoverage(expected []string, candidate []string) (matched, total int) {
	total = len(expected)
	for _, want := range expected {
		for _, got := range candidate {
			if FuzzyWordMatch(want, got) {
				matched++
				break
			}
		}
	}
	return matched, total
}

// HalfWordsMatch reports whether at least half of the words in expected
// fuzzy-match words in candidate. An expected string with no words matches.
func HalfWordsMatch(expected, candidate string) bool {
	matched, total := WordCoverage(Words(expected), Words(candidate))
	if total == 0 {
		return true
	}
	return matched*2 >= total
}
