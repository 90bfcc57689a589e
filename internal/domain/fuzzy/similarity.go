// Package fuzzy scores how closely a keyword matches chat text.
//
// Exact and substring hits short-circuit to 1.0. Anything else falls back to
// normalized Levenshtein distance, computed per whitespace token so that long
// messages are not penalised for their length.
package fuzzy

import "strings"

// Levenshtein returns the unit-cost edit distance (insert, delete, substitute)
// between a and b, computed over runes with a full DP table.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	m, n := len(ra), len(rb)

	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
		dp[i][0] = i
	}
	for j := 0; j <= n; j++ {
		dp[0][j] = j
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if ra[i-1] == rb[j-1] {
				dp[i][j] = dp[i-1][j-1]
				continue
			}
			dp[i][j] = 1 + min(
				dp[i-1][j],   // deletion
				dp[i][j-1],   // insertion
				dp[i-1][j-1], // substitution
			)
		}
	}
	return dp[m][n]
}

// Similarity returns a case-insensitive match strength in [0,1].
//
// 1.0 when a equals b or b contains a. Otherwise 1 - distance/maxLen, where
// lengths are counted in runes. Two empty strings are identical (1.0).
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b || strings.Contains(b, a) {
		return 1
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(maxLen)
}

// BestWordMatch scores keyword against a whole message.
//
// A case-insensitive substring hit anywhere in the message returns 1.0.
// Otherwise the message is split on whitespace and the best per-token
// Similarity wins. A message without tokens scores 0.
func BestWordMatch(keyword, message string) float64 {
	kw := strings.ToLower(keyword)
	msg := strings.ToLower(message)
	if strings.Contains(msg, kw) {
		return 1
	}

	best := 0.0
	for _, word := range strings.Fields(msg) {
		if s := Similarity(kw, word); s > best {
			best = s
		}
	}
	return best
}
