package termmagic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTsToKeywords(t *testing.T) {
	ts := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)
	kws := TsToKeywords(ts, "date")
	assert.Contains(t, kws, "date:2026")
	assert.Contains(t, kws, "date:2026-03")
	assert.Contains(t, kws, "date:2026-03-05")
	assert.Contains(t, kws, "year:2026")
	assert.Contains(t, kws, "month:03")
	assert.Contains(t, kws, "day:05")
}

func TestTsToKeywordsVdateFamily(t *testing.T) {
	ts := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	kws := TsToKeywords(ts, "vdate")
	assert.Contains(t, kws, "vdate:2020")
}

func TestVersionToKeywords(t *testing.T) {
	kws := VersionToKeywords(10)
	assert.Contains(t, kws, "version:10")
	assert.Contains(t, kws, "version:>=8")
	assert.Contains(t, kws, "version:>=1")
	assert.NotContains(t, kws, "version:>=16")
}

func TestMsgIDHashIsDeterministicAndFixedLength(t *testing.T) {
	a := MsgIDHash("<abc123@example.com>")
	b := MsgIDHash("abc123@example.com")
	assert.Equal(t, a, b, "brackets should be stripped before hashing")
	assert.Len(t, a, 27)
}

func TestLooksLikeMessageID(t *testing.T) {
	assert.True(t, LooksLikeMessageID("<abc@example.com>"))
	assert.True(t, LooksLikeMessageID("abc@example.com"))
	assert.False(t, LooksLikeMessageID("not-an-id"))
	assert.False(t, LooksLikeMessageID("@example.com"))
}

func TestTagQuoteUnquoteRoundTrip(t *testing.T) {
	cases := []string{
		"simple",
		"has space",
		"weird/chars:here",
		"unicode-é",
		"",
	}
	for _, c := range cases {
		q := TagQuote(c)
		got, err := TagUnquote(q)
		require.NoError(t, err)
		assert.Equal(t, c, got, "case %q", c)
	}
}

func TestTagQuoteLeavesSafeCharsAlone(t *testing.T) {
	assert.Equal(t, "abc_DEF-123.x", TagQuote("abc_DEF-123.x"))
}

func TestTagUnquoteRejectsTruncatedEscape(t *testing.T) {
	_, err := TagUnquote("abc%2")
	assert.Error(t, err)
}
