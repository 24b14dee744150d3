// Package fuzzy provides text normalization and string similarity helpers
// used to compare song metadata coming from different providers.
package fuzzy

import (
	"regexp"
	"strings"

	"github.com/gosimple/unidecode"
)

var (
	// Parenthetical asides, trailing " - ..." suffixes and the literal
	// token "feat" carry no identity information for a song title.
	asideRegex       = regexp.MustCompile(`(?i)\(.*?\)|-\s+.*|feat`)
	wordRegex        = regexp.MustCompile(`\w+`)
	saintRegex       = regexp.MustCompile(`(?i)\bst(e?s?)\.?(\s+|$)`)
	contractionRegex = regexp.MustCompile(`\s+('ve|'d|'ll|'s|'m|'re|n't)\b`)
	trailingDotRegex = regexp.MustCompile(`([^.])\.$`)
)

// Transliterate maps Unicode text to its closest ASCII representation.
func Transliterate(s string) string {
	return unidecode.Unidecode(s)
}

// NormalizeTitle prepares a song title for comparison: strips a trailing
// bare period, expands "St"/"Ste" abbreviations to "Saint" and re-attaches
// contraction suffixes that transliteration may have split off ("do n't").
func NormalizeTitle(title string) string {
	title = trailingDotRegex.ReplaceAllString(title, "$1")
	title = saintRegex.ReplaceAllString(title, "saint$1$2")
	title = contractionRegex.ReplaceAllString(title, "$1")
	return title
}

// Words returns the lowercase ASCII tokens of a sentence, with asides
// stripped and duplicates removed, preserving first-occurrence order.
func Words(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range tokens(asideRegex.ReplaceAllString(s, "")) {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// NormalizeSentence returns a sentence without punctuation or asides,
// transliterated, lowercased and single-spaced.
func NormalizeSentence(s string) string {
	return strings.Join(tokens(asideRegex.ReplaceAllString(s, "")), " ")
}

func tokens(s string) []string {
	return wordRegex.FindAllString(strings.ToLower(Transliterate(s)), -1)
}

// CommonWord reports whether the two token sequences share at least one token.
func CommonWord(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, w := range a {
		set[w] = struct{}{}
	}
	for _, w := range b {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}
