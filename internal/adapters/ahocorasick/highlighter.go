// Package ahocorasick marks exact keyword occurrences in chat text using an
// Aho-Corasick automaton (petar-dambovaliev/aho-corasick), so every keyword
// is located in a single pass over the message.
package ahocorasick

import (
	"strings"

	aho "github.com/petar-dambovaliev/aho-corasick"
)

// Span is one keyword occurrence, as byte offsets into the scanned text.
type Span struct {
	Start   int
	End     int
	Keyword string
}

// Highlighter finds whole-word, ASCII case-insensitive keyword occurrences.
// Fuzzy matches that differ from every keyword produce no spans.
type Highlighter struct {
	automaton aho.AhoCorasick
	keywords  []string
}

// NewHighlighter compiles keywords. Blank keywords are dropped.
func NewHighlighter(keywords []string) *Highlighter {
	kws := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kws = append(kws, k)
		}
	}
	h := &Highlighter{keywords: kws}
	if len(kws) == 0 {
		return h
	}
	builder := aho.NewAhoCorasickBuilder(aho.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            aho.LeftMostLongestMatch,
		DFA:                  true,
	})
	h.automaton = builder.Build(kws)
	return h
}

// Spans returns the non-overlapping keyword occurrences in text, leftmost
// first; at one position the longest keyword wins.
func (h *Highlighter) Spans(text string) []Span {
	if len(h.keywords) == 0 || text == "" {
		return nil
	}
	found := h.automaton.FindAll(text)
	if len(found) == 0 {
		return nil
	}
	spans := make([]Span, 0, len(found))
	for _, m := range found {
		spans = append(spans, Span{Start: m.Start(), End: m.End(), Keyword: h.keywords[m.Pattern()]})
	}
	return spans
}

// Highlight wraps every keyword occurrence in text with before and after.
func (h *Highlighter) Highlight(text, before, after string) string {
	spans := h.Spans(text)
	if len(spans) == 0 {
		return text
	}
	var sb strings.Builder
	last := 0
	for _, s := range spans {
		sb.WriteString(text[last:s.Start])
		sb.WriteString(before)
		sb.WriteString(text[s.Start:s.End])
		sb.WriteString(after)
		last = s.End
	}
	sb.WriteString(text[last:])
	return sb.String()
}
