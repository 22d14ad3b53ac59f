package graph

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeText prepares a field value for fuzzy comparison: NFC
// normalization, lowercasing, and whitespace collapsing. Two values
// that normalize equal are treated as identical.
func normalizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// levenshtein computes the edit distance between two strings, counting
// insertions, deletions, and substitutions over runes.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// textDistance returns the normalized edit distance between two field
// values in [0, 1]: 0 for equal strings, 1 for nothing in common.
// Either side being empty yields the neutral maximum distance, so a
// record missing a field is never penalized or rewarded.
func textDistance(a, b string) float64 {
	na := normalizeText(a)
	nb := normalizeText(b)
	if na == "" || nb == "" {
		return neutralDistance
	}
	if na == nb {
		return 0
	}

	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	return float64(levenshtein(na, nb)) / float64(longest)
}

// cosineDistance returns 1 - cosine similarity between two embedding
// vectors. Mismatched or missing vectors yield the neutral maximum.
func cosineDistance(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return neutralDistance
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return neutralDistance
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
