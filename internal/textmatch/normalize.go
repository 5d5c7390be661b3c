package textmatch

import (
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, strips everything that is not a letter, digit, or
// whitespace, and collapses runs of whitespace into single spaces.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return b.String()
}

// FoldDiacritics removes combining marks after canonical decomposition, so
// "Skeletá" becomes "Skeleta". Characters without a decomposition are kept.
func FoldDiacritics(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeFolded folds diacritics and then normalizes.
func NormalizeFolded(s string) string {
	return Normalize(FoldDiacritics(s))
}

// ASCIIFold transliterates s to ASCII, covering scripts and ligatures that
// diacritic folding leaves alone (for example "Ø" or "Œ").
func ASCIIFold(s string) string {
	if s == "" {
		return ""
	}
	return unidecode.Unidecode(s)
}

// Words returns the folded, normalized tokens of s.
func Words(s string) []string {
	return strings.Fields(NormalizeFolded(s))
}

// ContainsNormalized reports whether needle appears in haystack once both are
// folded and normalized. An empty needle never matches.
func ContainsNormalized(haystack, needle string) bool {
	n := NormalizeFolded(needle)
	if n == "" {
		return false
	}
	return strings.Contains(NormalizeFolded(haystack), n)
}
