// Package fuzzy scores the similarity of two strings on a 0-100 scale.
//
// Scores follow the indel-normalised definitions used by the thefuzz /
// rapidfuzz family, so thresholds tuned against those libraries carry over.
// Ratio is 2*LCS/(len(a)+len(b)).
package fuzzy

import (
	"math"
	"slices"
	"strings"
	"unicode"
)

func Ratio(a, b string) int {
	return round(ratio([]rune(a), []rune(b)))
}

// PartialRatio scores the shorter string against its best-aligned substring
// of the longer one, including windows hanging off either end.
func PartialRatio(a, b string) int {
	s, l := []rune(a), []rune(b)
	if len(s) > len(l) {
		s, l = l, s
	}
	if len(s) == 0 {
		if len(l) == 0 {
			return 100
		}
		return 0
	}

	best := partial(s, l)
	if len(s) == len(l) && best < 100 {
		best = math.Max(best, partial(l, s))
	}
	return round(best)
}

func partial(s, l []rune) float64 {
	n, m := len(s), len(l)
	best := 0.0
	consider := func(window []rune) bool {
		if r := ratio(s, window); r > best {
			best = r
		}
		return best >= 100
	}

	for i := 1; i < n; i++ {
		if consider(l[:i]) {
			return best
		}
	}
	for i := 0; i <= m-n; i++ {
		if consider(l[i : i+n]) {
			return best
		}
	}
	for i := m - n + 1; i < m; i++ {
		if consider(l[i:]) {
			return best
		}
	}
	return best
}

func TokenSortRatio(a, b string) int {
	return round(ratio([]rune(sortedTokens(Process(a))), []rune(sortedTokens(Process(b)))))
}

// TokenSetRatio compares the shared words of a and b against each side's
// shared-plus-remaining words and returns the best of the three ratios.
func TokenSetRatio(a, b string) int {
	setA := tokenSet(Process(a))
	setB := tokenSet(Process(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var intersection, onlyA, onlyB []string
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection = append(intersection, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if _, ok := setA[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}

	if len(intersection) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	slices.Sort(intersection)
	slices.Sort(onlyA)
	slices.Sort(onlyB)

	sect := strings.Join(intersection, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	best := ratio([]rune(combinedA), []rune(combinedB))
	if sect != "" {
		best = math.Max(best, ratio([]rune(sect), []rune(combinedA)))
		best = math.Max(best, ratio([]rune(sect), []rune(combinedB)))
	}
	return round(best)
}

// Process lowercases s, drops non-ASCII runes, turns every remaining
// non-word rune into a space and trims the result.
func Process(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r > unicode.MaxASCII {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	slices.Sort(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

func ratio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcs(a, b)) / float64(total)
}

func lcs(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func round(score float64) int {
	return int(math.RoundToEven(score))
}
