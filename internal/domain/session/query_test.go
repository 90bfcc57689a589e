package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeQuery(t *testing.T) {
	assert.Equal(t, "keywords=gg%2Cpog&streamer=123", EncodeQuery([]string{"GG", "pog"}, "123"))
	assert.Equal(t, "keywords=gg", EncodeQuery([]string{"gg"}, ""))
	assert.Equal(t, "streamer=9", EncodeQuery(nil, "9"))
	assert.Equal(t, "", EncodeQuery([]string{"  "}, ""))
}

func TestDecodeQuery_RoundTrip(t *testing.T) {
	cases := []struct {
		keywords []string
		filter   string
	}{
		{[]string{"gg"}, ""},
		{[]string{"gg", "pog champ", "ñandú"}, "42"},
		{[]string{}, "7"},
	}
	for _, c := range cases {
		kws, filter, err := DecodeQuery(EncodeQuery(c.keywords, c.filter))
		require.NoError(t, err)
		assert.Equal(t, c.keywords, kws)
		assert.Equal(t, c.filter, filter)
	}
}

func TestDecodeQuery_AcceptsURLAndPrefix(t *testing.T) {
	kws, filter, err := DecodeQuery("https://example.com/search?keywords=a,b&streamer=5")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, kws)
	assert.Equal(t, "5", filter)

	kws, _, err = DecodeQuery("?keywords=x")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, kws)
}

func TestDecodeQuery_Malformed(t *testing.T) {
	_, _, err := DecodeQuery("keywords=%zz")
	assert.Error(t, err)
}

func TestParseKeywordList(t *testing.T) {
	assert.Equal(t, []string{}, ParseKeywordList(""))
	assert.Equal(t, []string{"gg", "wp"}, ParseKeywordList(" GG ,wp,,gg"))
}
