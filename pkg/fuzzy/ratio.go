package fuzzy

import (
	"strings"
	"unicode"
)

// Ratio returns the longest-common-subsequence similarity of a and b,
// normalized to [0, 1]. Results below floor are reported as 0.
//
// The comparison never fails on unusual input: if it panics (malformed
// Unicode, pathological runes), both strings are reduced to their
// alphanumeric and space characters and compared again.
func Ratio(a, b string, floor float64) float64 {
	return withFallback(a, b, floor, lcsRatio)
}

// PartialRatio returns the best Ratio between the shorter string and any
// equally long window of the longer one, normalized to [0, 1]. Results
// below floor are reported as 0.
func PartialRatio(a, b string, floor float64) float64 {
	return withFallback(a, b, floor, partialLCSRatio)
}

func withFallback(a, b string, floor float64, cmp func([]rune, []rune) float64) (r float64) {
	defer func() {
		if recover() != nil {
			r = gate(cmp([]rune(filterAlnum(a)), []rune(filterAlnum(b))), floor)
		}
	}()
	return gate(cmp([]rune(a), []rune(b)), floor)
}

func gate(r, floor float64) float64 {
	if r < floor {
		return 0
	}
	return r
}

func filterAlnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// lcsRatio is 2*LCS(a,b) / (len(a)+len(b)).
func lcsRatio(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return 2 * float64(longestCommonSubsequence(a, b)) / float64(len(a)+len(b))
}

// partialLCSRatio slides the shorter string across the longer one and keeps
// the best window similarity.
func partialLCSRatio(a, b []rune) float64 {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return lcsRatio(a, b)
	}
	best := 0.0
	for start := 0; start+len(short) <= len(long); start++ {
		if r := lcsRatio(short, long[start:start+len(short)]); r > best {
			best = r
			if best == 1 {
				break
			}
		}
	}
	return best
}

func longestCommonSubsequence(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
