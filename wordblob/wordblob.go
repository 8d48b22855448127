// Package wordblob implements the partial-match candidate index described
// in spec §2.4/§4.4: a bounded set of candidate words supporting substring
// and glob ("abc*def") lookup, evicted LRU-style once it hits its word
// budget. Grounded on the teacher's use of `hashicorp/golang-lru` as the
// bounded-cache primitive (the same library backs the record store's read
// cache, see `storage/records`), generalized here from a byte-blob cache to
// a bounded candidate-word set.
package wordblob

import (
	"bufio"
	"io"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Space is a bounded, LRU-evicted set of candidate words plus an
// unbounded "static" set (seeded once from a wordlist or dictionary file)
// that is never evicted and suppresses re-adding the same word to the
// bounded set (spec: "blacklist membership... to avoid double-listing").
type Space struct {
	mu sync.Mutex

	limit  int
	lru    *lru.Cache
	words  map[string]struct{}
	static map[string]struct{}

	sorted []string
	dirty  bool
}

// New returns a Space bounded to at most limit LRU-tracked words.
func New(limit int) *Space {
	s := &Space{
		limit:  limit,
		words:  make(map[string]struct{}),
		static: make(map[string]struct{}),
	}
	c, err := lru.NewWithEvict(limit, s.onEvict)
	if err != nil {
		// limit <= 0 is the only failure mode of lru.New; fall back to 1
		// so the space is still usable rather than panicking at startup.
		c, _ = lru.NewWithEvict(1, s.onEvict)
	}
	s.lru = c
	return s
}

func (s *Space) onEvict(key interface{}, _ interface{}) {
	word := key.(string)
	delete(s.words, word)
	s.dirty = true
}

// Add inserts word into the bounded set, evicting the least-recently-used
// word if the space is full. A no-op if word is already static.
func (s *Space) Add(word string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.static[word]; ok {
		return
	}
	if _, ok := s.words[word]; ok {
		s.lru.Get(word) // refresh recency
		return
	}
	s.words[word] = struct{}{}
	s.dirty = true
	s.lru.Add(word, struct{}{})
}

// Remove drops word from the bounded set (used by update_terms when a
// pending term no longer meets min_hits). Static words are unaffected.
func (s *Space) Remove(word string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.words[word]; ok {
		s.lru.Remove(word)
		delete(s.words, word)
		s.dirty = true
	}
}

// AddStatic seeds words into the permanent, unbounded blacklist set.
func (s *Space) AddStatic(words []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range words {
		s.static[w] = struct{}{}
	}
	s.dirty = true
}

// AddDictionary reads newline-delimited words from r into the static set.
func (s *Space) AddDictionary(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	var words []string
	for scanner.Scan() {
		w := strings.TrimSpace(scanner.Text())
		if w != "" {
			words = append(words, w)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	s.AddStatic(words)
	return nil
}

// Contains reports whether word is present, in either the bounded or
// static set.
func (s *Space) Contains(word string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.static[word]; ok {
		return true
	}
	_, ok := s.words[word]
	return ok
}

// Len returns the number of LRU-tracked words (the static blacklist is not
// counted against the budget).
func (s *Space) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.words)
}

func (s *Space) rebuildSorted() {
	if !s.dirty {
		return
	}
	all := make([]string, 0, len(s.words)+len(s.static))
	for w := range s.words {
		all = append(all, w)
	}
	for w := range s.static {
		all = append(all, w)
	}
	sort.Strings(all)
	s.sorted = all
	s.dirty = false
}

// Candidates returns up to maxResults words matching pattern, where '*' is
// the only wildcard: "abc*" is a prefix search, "*abc" a suffix search,
// "abc*def" requires both substrings to appear in order, and a pattern
// with no '*' is a plain substring search.
func (s *Space) Candidates(pattern string, maxResults int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildSorted()

	var out []string
	for _, w := range s.sorted {
		if matchesGlob(w, pattern) {
			out = append(out, w)
			if len(out) >= maxResults {
				break
			}
		}
	}
	return out
}

// matchesGlob reports whether word matches a '*'-wildcard pattern: each
// non-empty segment between stars must appear in word, in order; the
// first segment is anchored to the start unless the pattern begins with
// '*', and the last segment is anchored to the end unless the pattern
// ends with '*'.
func matchesGlob(word, pattern string) bool {
	if pattern == "" {
		return word == ""
	}
	if !strings.Contains(pattern, "*") {
		return strings.Contains(word, pattern)
	}
	parts := strings.Split(pattern, "*")
	anchorStart := pattern[0] != '*'
	anchorEnd := pattern[len(pattern)-1] != '*'

	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(word[pos:], part)
		if idx < 0 {
			return false
		}
		if i == 0 && anchorStart && idx != 0 {
			return false
		}
		pos += idx + len(part)
	}
	if anchorEnd {
		last := parts[len(parts)-1]
		if last != "" && !strings.HasSuffix(word, last) {
			return false
		}
	}
	return true
}
