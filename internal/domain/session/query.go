package session

import (
	"fmt"
	"net/url"
	"strings"
)

// Query-string keys of a shareable session reference.
const (
	QueryKeywords = "keywords"
	QueryStreamer = "streamer"
)

// EncodeQuery renders keywords and filter as a shareable query string,
// e.g. "keywords=gg%2Cpog&streamer=123". Empty parts are omitted.
func EncodeQuery(keywords []string, sourceFilter string) string {
	v := url.Values{}
	if kws := NormalizeKeywords(keywords); len(kws) > 0 {
		v.Set(QueryKeywords, strings.Join(kws, ","))
	}
	if sourceFilter != "" {
		v.Set(QueryStreamer, sourceFilter)
	}
	return v.Encode()
}

// DecodeQuery parses a query string produced by EncodeQuery. A leading "?"
// is accepted, as is a full URL.
func DecodeQuery(raw string) (keywords []string, sourceFilter string, err error) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[i+1:]
	}
	v, err := url.ParseQuery(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse query: %w", err)
	}
	return ParseKeywordList(v.Get(QueryKeywords)), strings.TrimSpace(v.Get(QueryStreamer)), nil
}

// ParseKeywordList splits a comma-joined keyword list and normalizes it.
func ParseKeywordList(s string) []string {
	if s == "" {
		return []string{}
	}
	return NormalizeKeywords(strings.Split(s, ","))
}
