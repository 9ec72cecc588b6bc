package keyword

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Process lowercases s, turns every rune that is not a letter or digit into a
// space, and collapses runs of whitespace.
func Process(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// Ratio scores the similarity of two strings from 0 to 100:
// 100 * (len(a)+len(b)-indel) / (len(a)+len(b)), lengths in runes.
func Ratio(a, b string) float64 {
	return ratioRunes([]rune(a), []rune(b))
}

func ratioRunes(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	d := editDistance(a, b, 2)
	return 100 * float64(total-d) / float64(total)
}

// PartialRatio is the best Ratio between the shorter string and every window
// of the same length in the longer one.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 100
		}
		return 0
	}
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		r := ratioRunes(short, long[i:i+len(short)])
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// TokenSortRatio compares the strings after sorting their words.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// PartialTokenSortRatio is PartialRatio over sorted words.
func PartialTokenSortRatio(a, b string) float64 {
	return PartialRatio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares the shared words of a and b against each side's
// shared words plus its remainder, and keeps the best Ratio.
func TokenSetRatio(a, b string) float64 {
	return tokenSet(a, b, Ratio)
}

// PartialTokenSetRatio is TokenSetRatio scored with PartialRatio.
func PartialTokenSetRatio(a, b string) float64 {
	return tokenSet(a, b, PartialRatio)
}

func tokenSet(a, b string, score func(string, string) float64) float64 {
	setA, setB := tokenSetOf(a), tokenSetOf(b)
	var shared, onlyA, onlyB []string
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared = append(shared, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if _, ok := setA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(shared)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	t0 := strings.Join(shared, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(onlyA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(onlyB, " "))
	return math.Max(score(t0, t1), math.Max(score(t0, t2), score(t1, t2)))
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSetOf(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		set[t] = struct{}{}
	}
	return set
}

// WeightedRatio combines the ratios above into one 0-100 score. Both strings
// are run through Process first. When one string is at least 1.5 times longer
// than the other, partial scores are used and scaled down (0.9, or 0.6 past 8x);
// token-based scores are further weighted by 0.95.
func WeightedRatio(a, b string) int {
	p1, p2 := Process(a), Process(b)
	if p1 == "" || p2 == "" {
		return 0
	}
	return weightedProcessed(p1, p2)
}

func weightedProcessed(p1, p2 string) int {
	base := Ratio(p1, p2)
	l1, l2 := float64(len([]rune(p1))), float64(len([]rune(p2)))
	lenRatio := math.Max(l1, l2) / math.Min(l1, l2)

	const unbaseScale = 0.95
	if lenRatio < 1.5 {
		tsor := TokenSortRatio(p1, p2) * unbaseScale
		tser := TokenSetRatio(p1, p2) * unbaseScale
		return int(math.Round(math.Max(base, math.Max(tsor, tser))))
	}

	partialScale := 0.9
	if lenRatio >= 8 {
		partialScale = 0.6
	}
	partial := PartialRatio(p1, p2) * partialScale
	ptsor := PartialTokenSortRatio(p1, p2) * unbaseScale * partialScale
	ptser := PartialTokenSetRatio(p1, p2) * unbaseScale * partialScale
	return int(math.Round(math.Max(math.Max(base, partial), math.Max(ptsor, ptser))))
}
