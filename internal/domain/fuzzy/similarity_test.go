package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Levenshtein
// =============================================================================

func TestLevenshtein_KnownDistances(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"gg", "game", 3},
		{"pog", "pog", 0},
		{"poggers", "pogchamp", 5},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b))
		})
	}
}

func TestLevenshtein_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"gg", "glorious"},
		{"", "x"},
		{"kekw", "kek"},
		{"ñandú", "nandu"},
		{"monkaS", "monka"},
	}
	for _, p := range pairs {
		assert.Equal(t, Levenshtein(p[0], p[1]), Levenshtein(p[1], p[0]), "%q vs %q", p[0], p[1])
	}
}

func TestLevenshtein_CountsRunesNotBytes(t *testing.T) {
	// "é" is two bytes but one edit.
	assert.Equal(t, 1, Levenshtein("cafe", "café"))
}

// =============================================================================
// Similarity
// =============================================================================

func TestSimilarity_IdenticalIsOne(t *testing.T) {
	for _, a := range []string{"a", "gg", "Poggers", "ñ", "two words"} {
		assert.Equal(t, 1.0, Similarity(a, a), a)
	}
}

func TestSimilarity_SubstringIsOne(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("gg", "ggwp"))
	assert.Equal(t, 1.0, Similarity("pog", "POGGERS"), "case-insensitive containment")
	// Containment is directional: b must contain a.
	assert.Less(t, Similarity("ggwp", "gg"), 1.0)
}

func TestSimilarity_BothEmpty(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
}

func TestSimilarity_EditDistanceRatio(t *testing.T) {
	// kitten/sitting: distance 3, max len 7.
	assert.InDelta(t, 1-3.0/7.0, Similarity("kitten", "sitting"), 1e-9)
	// One typo in a five letter word.
	assert.InDelta(t, 0.8, Similarity("kappa", "kapka"), 1e-9)
}

func TestSimilarity_Range(t *testing.T) {
	pairs := [][2]string{{"abc", "xyz"}, {"a", "bbbbbbbb"}, {"gg", "glorious"}}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

// =============================================================================
// BestWordMatch
// =============================================================================

func TestBestWordMatch_SubstringAnywhere(t *testing.T) {
	assert.Equal(t, 1.0, BestWordMatch("gg", "gg ez"))
	assert.Equal(t, 1.0, BestWordMatch("GG", "that was a GG moment"))
	assert.Equal(t, 1.0, BestWordMatch("nice play", "what a NICE PLAY there"), "multi-word keyword")
}

func TestBestWordMatch_TypoTolerant(t *testing.T) {
	// "kapka" is one substitution away from "kappa".
	assert.InDelta(t, 0.8, BestWordMatch("kappa", "lol kapka"), 1e-9)
}

func TestBestWordMatch_BestTokenWins(t *testing.T) {
	s := BestWordMatch("clutch", "what a clutc play")
	assert.InDelta(t, 1-1.0/6.0, s, 1e-9)
}

func TestBestWordMatch_NoTokens(t *testing.T) {
	assert.Equal(t, 0.0, BestWordMatch("gg", ""))
	assert.Equal(t, 0.0, BestWordMatch("gg", "   \t\n"))
}

func TestBestWordMatch_FarAwayWordsScoreLow(t *testing.T) {
	s := BestWordMatch("gg", "glorious game")
	assert.Less(t, s, 0.70)
}

func BenchmarkBestWordMatch(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		BestWordMatch("poggers", "that clip was absolutely pogger worthy chat")
	}
}
