package ahocorasick

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighlighter_FindsKeywords(t *testing.T) {
	h := NewHighlighter([]string{"gg", "pog"})
	spans := h.Spans("gg that was pog")
	require.Len(t, spans, 2)
	assert.Equal(t, Span{Start: 0, End: 2, Keyword: "gg"}, spans[0])
	assert.Equal(t, Span{Start: 12, End: 15, Keyword: "pog"}, spans[1])
}

func TestHighlighter_CaseInsensitive(t *testing.T) {
	h := NewHighlighter([]string{"gg"})
	spans := h.Spans("GG WP")
	require.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, 2, spans[0].End)
}

func TestHighlighter_WholeWordsOnly(t *testing.T) {
	h := NewHighlighter([]string{"gg"})
	assert.Empty(t, h.Spans("eggs and bagged"))
}

func TestHighlighter_NoKeywords(t *testing.T) {
	h := NewHighlighter([]string{"", "  "})
	assert.Nil(t, h.Spans("anything"))
	assert.Equal(t, "anything", h.Highlight("anything", "[", "]"))
}

func TestHighlight_WrapsOccurrences(t *testing.T) {
	h := NewHighlighter([]string{"gg", "pog"})
	assert.Equal(t, "[GG] ez [pog]", h.Highlight("GG ez pog", "[", "]"))
	assert.Equal(t, "no hits here", h.Highlight("no hits here", "[", "]"))
}
