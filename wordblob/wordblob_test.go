package wordblob

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddContains(t *testing.T) {
	s := New(10)
	s.Add("hello")
	assert.True(t, s.Contains("hello"))
	assert.False(t, s.Contains("world"))
	assert.Equal(t, 1, s.Len())
}

func TestRemove(t *testing.T) {
	s := New(10)
	s.Add("hello")
	s.Remove("hello")
	assert.False(t, s.Contains("hello"))
	assert.Equal(t, 0, s.Len())
}

func TestLRUEviction(t *testing.T) {
	s := New(2)
	s.Add("one")
	s.Add("two")
	s.Add("three") // should evict "one" (least recently used)
	assert.False(t, s.Contains("one"))
	assert.True(t, s.Contains("two"))
	assert.True(t, s.Contains("three"))
	assert.Equal(t, 2, s.Len())
}

func TestAccessRefreshesRecency(t *testing.T) {
	s := New(2)
	s.Add("one")
	s.Add("two")
	s.Add("one") // refresh "one" so "two" becomes LRU
	s.Add("three")
	assert.True(t, s.Contains("one"))
	assert.False(t, s.Contains("two"))
}

func TestStaticWordsNeverEvictedAndBypassBudget(t *testing.T) {
	s := New(1)
	s.AddStatic([]string{"blacklisted"})
	s.Add("dynamic")
	assert.True(t, s.Contains("blacklisted"))
	assert.True(t, s.Contains("dynamic"))
	// Adding a static word again must not consume budget.
	s.Add("blacklisted")
	assert.Equal(t, 1, s.Len())
}

func TestAddDictionary(t *testing.T) {
	s := New(10)
	err := s.AddDictionary(strings.NewReader("alpha\nbeta\n\ngamma\n"))
	require.NoError(t, err)
	assert.True(t, s.Contains("alpha"))
	assert.True(t, s.Contains("beta"))
	assert.True(t, s.Contains("gamma"))
}

func TestCandidatesPlainSubstring(t *testing.T) {
	s := New(10)
	for _, w := range []string{"apple", "banana", "grape", "pineapple"} {
		s.Add(w)
	}
	got := s.Candidates("app", 10)
	assert.ElementsMatch(t, []string{"apple", "pineapple"}, got)
}

func TestCandidatesPrefixWildcard(t *testing.T) {
	s := New(10)
	for _, w := range []string{"apple", "application", "banana"} {
		s.Add(w)
	}
	got := s.Candidates("app*", 10)
	assert.ElementsMatch(t, []string{"apple", "application"}, got)
}

func TestCandidatesSuffixWildcard(t *testing.T) {
	s := New(10)
	for _, w := range []string{"testing", "running", "banana"} {
		s.Add(w)
	}
	got := s.Candidates("*ing", 10)
	assert.ElementsMatch(t, []string{"testing", "running"}, got)
}

func TestCandidatesMiddleWildcard(t *testing.T) {
	s := New(10)
	for _, w := range []string{"abcdef", "abxdef", "abdef"} {
		s.Add(w)
	}
	got := s.Candidates("ab*def", 10)
	assert.ElementsMatch(t, []string{"abcdef", "abxdef", "abdef"}, got)
}

func TestCandidatesRespectsMaxResults(t *testing.T) {
	s := New(10)
	for _, w := range []string{"aa", "ab", "ac", "ad"} {
		s.Add(w)
	}
	got := s.Candidates("a*", 2)
	assert.Len(t, got, 2)
}
