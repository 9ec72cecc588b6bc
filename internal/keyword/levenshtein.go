// Package keyword resolves free-text titles against the catalog and runs
// full-text search over it.
package keyword

// LevenshteinDistance returns the minimum number of single-rune insertions,
// deletions or substitutions that turn a into b.
func LevenshteinDistance(a, b string) int {
	return editDistance([]rune(a), []rune(b), 1)
}

// IndelDistance is the edit distance when a substitution costs a deletion plus
// an insertion. It is the distance behind Ratio.
func IndelDistance(a, b string) int {
	return editDistance([]rune(a), []rune(b), 2)
}

func editDistance(a, b []rune, subCost int) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	// Two rows are enough.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = subCost
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}
