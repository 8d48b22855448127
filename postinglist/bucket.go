// Package postinglist implements PostingListBucket: a packed sequence of
// (keyword, comment, IntSet) triples living inside a single record-store
// record. It mutates plain []byte blobs with no hidden state, mirroring the
// teacher's bitmapdb merge-by-or helpers (ethdb/bitmapdb/dbutils.go)
// collapsed from sharded multi-key storage down to single-blob triples, per
// spec §4.3.
package postinglist

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/BjarniRunar/moggie/intset"
)

// MaxFieldLen is the largest keyword or comment length the wire format can
// carry (u16 length prefix).
const MaxFieldLen = math.MaxUint16

// Entry is one decoded triple.
type Entry struct {
	Keyword []byte
	Comment []byte
	Set     *intset.IntSet
}

// Bucket is a decoded view over a PostingListBucket blob, keyed by keyword
// for O(1) lookup/update. Encode() serializes it back to the wire format.
type Bucket struct {
	order   [][]byte // keyword insertion order, for stable re-encoding
	entries map[string]*Entry
}

// Decode parses a PostingListBucket blob (§6 layout: repeated
// [u16 kw_len][u16 comment_len][u32 iset_len][kw][comment][iset_blob]).
func Decode(blob []byte) (*Bucket, error) {
	b := &Bucket{entries: make(map[string]*Entry)}
	pos := 0
	for pos < len(blob) {
		if len(blob)-pos < 8 {
			return nil, fmt.Errorf("postinglist: truncated triple header at offset %d", pos)
		}
		kwLen := int(binary.LittleEndian.Uint16(blob[pos : pos+2]))
		commentLen := int(binary.LittleEndian.Uint16(blob[pos+2 : pos+4]))
		isetLen := int(binary.LittleEndian.Uint32(blob[pos+4 : pos+8]))
		pos += 8

		if pos+kwLen+commentLen+isetLen > len(blob) {
			return nil, fmt.Errorf("postinglist: truncated triple body at offset %d", pos)
		}
		kw := append([]byte(nil), blob[pos:pos+kwLen]...)
		pos += kwLen
		comment := append([]byte(nil), blob[pos:pos+commentLen]...)
		pos += commentLen
		isetBlob := blob[pos : pos+isetLen]
		pos += isetLen

		iset, err := intset.DecodeValue(isetBlob)
		if err != nil {
			return nil, fmt.Errorf("postinglist: keyword %q: %w", kw, err)
		}
		b.put(kw, comment, iset)
	}
	return b, nil
}

func (b *Bucket) put(kw, comment []byte, iset *intset.IntSet) {
	key := string(kw)
	if _, exists := b.entries[key]; !exists {
		inOrder := false
		for _, o := range b.order {
			if string(o) == key {
				inOrder = true
				break
			}
		}
		if !inOrder {
			b.order = append(b.order, append([]byte(nil), kw...))
		}
	}
	b.entries[key] = &Entry{Keyword: kw, Comment: comment, Set: iset}
}

// Get returns the IntSet stored for kw, or nil if kw is absent.
func (b *Bucket) Get(kw []byte) *intset.IntSet {
	e, ok := b.entries[string(kw)]
	if !ok {
		return nil
	}
	return e.Set
}

// GetWithComment returns both the comment and IntSet stored for kw.
func (b *Bucket) GetWithComment(kw []byte) (comment []byte, set *intset.IntSet) {
	e, ok := b.entries[string(kw)]
	if !ok {
		return nil, nil
	}
	return e.Comment, e.Set
}

// Set replaces the triple for kw. If the resulting set is empty and comment
// is empty, the triple is dropped entirely (spec §4.3 invariant).
func (b *Bucket) Set(kw []byte, set *intset.IntSet, comment []byte) error {
	if len(kw) > MaxFieldLen {
		return fmt.Errorf("postinglist: keyword exceeds %d bytes", MaxFieldLen)
	}
	if len(comment) > MaxFieldLen {
		return fmt.Errorf("postinglist: comment exceeds %d bytes", MaxFieldLen)
	}
	if set == nil || (set.IsEmpty() && len(comment) == 0) {
		delete(b.entries, string(kw))
		return nil
	}
	b.put(kw, comment, set)
	return nil
}

// Add unions ids into the existing set for kw (creating it if absent), then
// subtracts deleted if supplied. This is the write path used by
// add_results/del_results to filter globally-deleted ids as they're merged.
func (b *Bucket) Add(kw []byte, ids *intset.IntSet, deleted *intset.IntSet) error {
	existing := b.Get(kw)
	var merged *intset.IntSet
	if existing == nil {
		merged = ids.Copy()
	} else {
		merged = intset.Or(existing, ids)
	}
	if deleted != nil {
		merged = intset.Sub(merged, deleted)
	}
	_, comment := b.commentOf(kw)
	return b.Set(kw, merged, comment)
}

func (b *Bucket) commentOf(kw []byte) (bool, []byte) {
	e, ok := b.entries[string(kw)]
	if !ok {
		return false, nil
	}
	return true, e.Comment
}

// SetComment rewrites kw's comment while preserving its IntSet.
func (b *Bucket) SetComment(kw []byte, comment []byte) error {
	set := b.Get(kw)
	if set == nil {
		set = intset.New()
	}
	return b.Set(kw, set, comment)
}

// Remove strips the triple for kw and returns what was stored there.
func (b *Bucket) Remove(kw []byte) (comment []byte, set *intset.IntSet) {
	comment, set = b.GetWithComment(kw)
	key := string(kw)
	if _, ok := b.entries[key]; ok {
		delete(b.entries, key)
	}
	return comment, set
}

// Keywords returns every keyword currently stored, in insertion order,
// without decoding any IntSet — used by callers that only need to scan
// keyword bytes (e.g. wordblob rebuilds, iter_tags).
func (b *Bucket) Keywords() [][]byte {
	out := make([][]byte, 0, len(b.order))
	for _, kw := range b.order {
		if _, ok := b.entries[string(kw)]; ok {
			out = append(out, kw)
		}
	}
	return out
}

// Items yields every (keyword, comment, IntSet) triple currently stored.
func (b *Bucket) Items() []Entry {
	out := make([]Entry, 0, len(b.entries))
	for _, kw := range b.order {
		if e, ok := b.entries[string(kw)]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// Len reports how many live triples the bucket currently holds.
func (b *Bucket) Len() int {
	return len(b.entries)
}

// Encode serializes the bucket back to its wire format (§6 layout).
func (b *Bucket) Encode() ([]byte, error) {
	var out []byte
	for _, kw := range b.order {
		e, ok := b.entries[string(kw)]
		if !ok {
			continue
		}
		isetBlob := e.Set.Encode()
		if len(e.Keyword) > MaxFieldLen || len(e.Comment) > MaxFieldLen {
			return nil, fmt.Errorf("postinglist: keyword %q exceeds field limits", e.Keyword)
		}
		var header [8]byte
		binary.LittleEndian.PutUint16(header[0:2], uint16(len(e.Keyword)))
		binary.LittleEndian.PutUint16(header[2:4], uint16(len(e.Comment)))
		binary.LittleEndian.PutUint32(header[4:8], uint32(len(isetBlob)))
		out = append(out, header[:]...)
		out = append(out, e.Keyword...)
		out = append(out, e.Comment...)
		out = append(out, isetBlob...)
	}
	return out, nil
}
