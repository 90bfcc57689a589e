package match

import (
	"fmt"
	"testing"

	"github.com/corey/chatscan/internal/domain/fuzzy"
	"github.com/corey/chatscan/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id, text string) ports.Message {
	return ports.Message{ID: id, Text: text, RecordingID: "v1"}
}

func TestNew_ThresholdFallback(t *testing.T) {
	assert.Equal(t, DefaultThreshold, New(0).Threshold)
	assert.Equal(t, DefaultThreshold, New(-1).Threshold)
	assert.Equal(t, DefaultThreshold, New(1.5).Threshold)
	assert.Equal(t, 0.8, New(0.8).Threshold)
	assert.Equal(t, 1.0, New(1).Threshold)
}

func TestEvaluate_ZeroValueUsesDefaultThreshold(t *testing.T) {
	var e Evaluator
	got := e.Evaluate([]ports.Message{
		msg("1", "hello there"),
		msg("2", "gg"),
	}, []string{"gg"})

	require.Len(t, got, 1, "unrelated messages are not admitted")
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "gg", got[0].MatchedKeyword)

	e.Threshold = 2
	assert.Len(t, e.Evaluate([]ports.Message{msg("1", "hello there")}, []string{"gg"}), 0)
}

func TestEvaluate_AdmitsSubstringHits(t *testing.T) {
	e := New(DefaultThreshold)
	got := e.Evaluate([]ports.Message{
		msg("1", "glorious game"),
		msg("2", "gg ez"),
		msg("3", "hello"),
	}, []string{"gg"})

	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, "gg", got[0].MatchedKeyword)
}

func TestEvaluate_SkipsMessagesWithoutRecording(t *testing.T) {
	e := New(DefaultThreshold)
	got := e.Evaluate([]ports.Message{
		{ID: "orphan", Text: "gg"},
		msg("ok", "gg"),
	}, []string{"gg"})

	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].ID)
}

func TestEvaluate_EmptyKeywords(t *testing.T) {
	e := New(DefaultThreshold)
	assert.Empty(t, e.Evaluate([]ports.Message{msg("1", "gg")}, nil))
}

func TestEvaluate_BestKeywordWins(t *testing.T) {
	e := New(DefaultThreshold)
	// "kapka" scores 0.8 against "kappa" and 1.0 against "kap".
	got := e.Evaluate([]ports.Message{msg("1", "kapka")}, []string{"kappa", "kap"})
	require.Len(t, got, 1)
	assert.Equal(t, "kap", got[0].MatchedKeyword)
	assert.Equal(t, 1.0, got[0].Score)
}

func TestEvaluate_TieKeepsFirstKeyword(t *testing.T) {
	e := New(DefaultThreshold)
	got := e.Evaluate([]ports.Message{msg("1", "gg wp")}, []string{"wp", "gg"})
	require.Len(t, got, 1)
	assert.Equal(t, "wp", got[0].MatchedKeyword)
}

func TestEvaluate_PreservesInputOrder(t *testing.T) {
	e := New(DefaultThreshold)
	got := e.Evaluate([]ports.Message{
		msg("c", "pog"), msg("a", "pog"), msg("b", "pog"),
	}, []string{"pog"})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestEvaluate_AdmitsIffBestScoreReachesThreshold(t *testing.T) {
	e := New(DefaultThreshold)
	keywords := []string{"kappa", "clutch", "gg"}
	texts := []string{
		"kapka", "kpka", "clutc moment", "cltch", "g", "ggez", "nothing here", "", "KAPPA",
	}
	for i, text := range texts {
		m := msg(string(rune('a'+i)), text)
		best := 0.0
		for _, kw := range keywords {
			best = max(best, fuzzy.BestWordMatch(kw, text))
		}
		got := e.Evaluate([]ports.Message{m}, keywords)
		if best >= DefaultThreshold {
			assert.Len(t, got, 1, "%q (best %.2f) should be admitted", text, best)
		} else {
			assert.Empty(t, got, "%q (best %.2f) should be rejected", text, best)
		}
	}
}

// One default-size page against a small keyword set: the per-page cost of
// an Initial pass without network time.
func BenchmarkEvaluate_Page(b *testing.B) {
	lines := []string{
		"gg wp that was insane",
		"LUL he actually missed that",
		"poggers clip it chat",
		"can someone link the build",
		"what song is this",
	}
	page := make([]ports.Message, 500)
	for i := range page {
		page[i] = msg(fmt.Sprintf("m%d", i), lines[i%len(lines)])
	}
	e := New(DefaultThreshold)
	keywords := []string{"pog", "clip", "insane"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Evaluate(page, keywords)
	}
}
