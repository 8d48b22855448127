package search

import (
	"io"
	"strings"

	"github.com/BjarniRunar/moggie/wordblob"
)

// CreatePartSpace sets the configured partial-match minimum-hits value;
// minHits <= 0 leaves it unchanged. UpdateTerms and Reindex do not filter
// words by hit count: every word whose length is within the configured
// bounds enters the partial-match index.
func (e *Engine) CreatePartSpace(minHits int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if minHits > 0 {
		e.config.PartialMinHits = uint64(minHits)
	}
}

// UpdateTerms feeds every keyword touched by a recent AddResults/DelResults
// call into the candidate word space, splitting each into its plain word
// component (stripping any "in:"/"date:"/etc. family prefix) before
// deciding whether it is eligible by length.
func (e *Engine) UpdateTerms(terms []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, kw := range terms {
		word := bareWord(kw)
		if word == "" {
			continue
		}
		n := uint64(len(word))
		if n < e.config.PartialShortest || n > e.config.PartialLongest {
			continue
		}
		e.partial.Add(word)
	}
}

// bareWord strips a "family:" prefix (in:, date:, tag:, version:, ...) from
// a keyword, leaving the plain term the partial-match index should index.
func bareWord(kw string) string {
	if i := strings.IndexByte(kw, ':'); i >= 0 {
		return kw[i+1:]
	}
	return kw
}

// Candidates returns up to maxResults words from the partial-match index
// matching pattern (spec §2.4's "*"-glob semantics).
func (e *Engine) Candidates(pattern string, maxResults int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if maxResults <= 0 {
		maxResults = int(e.config.PartialMatches)
	}
	return e.partial.Candidates(pattern, maxResults)
}

// AddStaticTerms seeds permanent, never-evicted candidate words (e.g. a
// curated stopword-free vocabulary loaded once at setup).
func (e *Engine) AddStaticTerms(words []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.partial.AddStatic(words)
}

// AddDictionaryTerms loads newline-delimited static words from r.
func (e *Engine) AddDictionaryTerms(r io.Reader) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.partial.AddDictionary(r); err != nil {
		return newErr(StorageError, "read dictionary terms", err)
	}
	return nil
}

// Reindex rebuilds the partial-match wordblob from scratch, replaying every
// keyword currently present in L1 or L2 buckets through UpdateTerms. Mirrors
// the original engine's create_part_space/iter_byte_keywords walk
// (original_source/moggie/search/engine.py), bounded by the store's highest
// occupied index rather than the full configured L2 bucket space, which is
// sparse in practice. Returns the number of keyword occurrences replayed.
func (e *Engine) Reindex(minHits int) (int, error) {
	e.mu.Lock()
	if minHits > 0 {
		e.config.PartialMinHits = uint64(minHits)
	}
	e.partial = wordblob.New(int(e.config.PartialListLen))
	last := e.store.Len()
	e.mu.Unlock()

	var kws []string
	for idx := RecordFirstKeyword; idx < last; idx++ {
		e.mu.Lock()
		if !e.store.Contains(idx) {
			e.mu.Unlock()
			continue
		}
		bucket, err := e.loadBucket(idx)
		e.mu.Unlock()
		if err != nil {
			return 0, err
		}
		for _, kwb := range bucket.Keywords() {
			kws = append(kws, string(kwb))
		}
	}
	e.UpdateTerms(kws)
	return len(kws), nil
}
