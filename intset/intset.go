// Package intset implements IntSet, a compressed ordered set of
// non-negative integers used throughout the search engine as the unit of
// posting-list membership and query results.
//
// Encoding is modeled on the teacher's ethdb/bitmapdb package: a delta is
// decoded, merged with the existing value, and re-encoded choosing
// whichever of the tri-mode encodings below comes out smallest. Unlike
// bitmapdb (which shards a RoaringBitmap across several LMDB keys),
// IntSet stores a single self-describing blob per keyword and supports a
// symbolic "ALL(n)" value that never materializes unless an operation
// forces it.
package intset

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// Tag bytes for the encoded forms, per spec §6 ("I"/"S"/"T"/"Z").
const (
	tagAll    byte = 'I' // symbolic ALL(n), unmaterialized
	tagSparse byte = 'S' // explicit sorted list of varint deltas
	tagRun    byte = 'T' // sorted run-length (start-delta, length) pairs
	tagDense  byte = 'Z' // roaring-bitmap-encoded dense container
)

// IntSet is an ordered set of non-negative integers. The zero value is
// not usable; construct with New, All, or Decode.
type IntSet struct {
	allN   uint64 // valid only while allSet is true
	allSet bool   // true: this is a still-symbolic ALL(allN)
	bm     *roaring.Bitmap
}

// New returns an empty IntSet, optionally seeded with the given values.
func New(values ...int) *IntSet {
	s := &IntSet{bm: roaring.New()}
	for _, v := range values {
		s.Add(uint32(v))
	}
	return s
}

// All returns the symbolic set {0..n-1}. It does not allocate a bitmap
// until an operation (other than Encode) forces materialization.
func All(n uint64) *IntSet {
	return &IntSet{allN: n, allSet: true}
}

// Copy returns an independent clone of s.
func (s *IntSet) Copy() *IntSet {
	if s == nil {
		return New()
	}
	if s.allSet {
		return &IntSet{allN: s.allN, allSet: true}
	}
	return &IntSet{bm: s.bm.Clone()}
}

// IsAll reports whether s is (still) the unmaterialized symbolic ALL(n)
// value, and returns n.
func (s *IntSet) IsAll() (n uint64, ok bool) {
	if s != nil && s.allSet {
		return s.allN, true
	}
	return 0, false
}

func (s *IntSet) materialize() {
	if s.allSet {
		bm := roaring.New()
		if s.allN > 0 {
			bm.AddRange(0, s.allN)
		}
		s.bm = bm
		s.allSet = false
	} else if s.bm == nil {
		s.bm = roaring.New()
	}
}

// Add inserts x into the set.
func (s *IntSet) Add(x uint32) {
	s.materialize()
	s.bm.Add(x)
}

// Contains reports whether x is a member of s.
func (s *IntSet) Contains(x uint32) bool {
	if s == nil {
		return false
	}
	if n, ok := s.IsAll(); ok {
		return uint64(x) < n
	}
	return s.bm.Contains(x)
}

// Len returns the number of members.
func (s *IntSet) Len() int {
	if s == nil {
		return 0
	}
	s.materialize()
	return int(s.bm.GetCardinality())
}

// Slice returns the members in ascending order. Forces materialization.
func (s *IntSet) Slice() []uint32 {
	if s == nil {
		return nil
	}
	s.materialize()
	return s.bm.ToArray()
}

// Iterator walks the set's members in ascending order without requiring
// the caller to hold the whole slice at once.
type Iterator struct {
	it roaring.IntIterable
}

// Iterator returns an ascending iterator over s's members.
func (s *IntSet) Iterator() *Iterator {
	s.materialize()
	return &Iterator{it: s.bm.Iterator()}
}

// HasNext reports whether another member is available.
func (it *Iterator) HasNext() bool { return it.it.HasNext() }

// Next returns the next member in ascending order.
func (it *Iterator) Next() uint32 { return it.it.Next() }

// OrInPlace unions other into s.
func (s *IntSet) OrInPlace(other *IntSet) {
	s.materialize()
	if other == nil {
		return
	}
	if n, ok := other.IsAll(); ok {
		s.bm.AddRange(0, n)
		return
	}
	s.bm.Or(other.bm)
}

// AndInPlace intersects s with other.
func (s *IntSet) AndInPlace(other *IntSet) {
	s.materialize()
	if other == nil {
		s.bm = roaring.New()
		return
	}
	if n, ok := other.IsAll(); ok {
		// Intersect with {0..n-1}: drop anything >= n.
		bound := roaring.New()
		bound.AddRange(0, n)
		s.bm.And(bound)
		return
	}
	s.bm.And(other.bm)
}

// SubInPlace removes other's members from s.
func (s *IntSet) SubInPlace(other *IntSet) {
	s.materialize()
	if other == nil {
		return
	}
	if n, ok := other.IsAll(); ok {
		bound := roaring.New()
		bound.AddRange(0, n)
		s.bm.AndNot(bound)
		return
	}
	s.bm.AndNot(other.bm)
}

// XorInPlace toggles membership of other's elements in s.
func (s *IntSet) XorInPlace(other *IntSet) {
	s.materialize()
	if other == nil {
		return
	}
	other.materialize()
	s.bm.Xor(other.bm)
}

// Or returns the union of all given sets (nil/empty-safe).
func Or(sets ...*IntSet) *IntSet {
	r := New()
	for _, s := range sets {
		r.OrInPlace(s)
	}
	return r
}

// And returns the intersection of all given sets. And() with zero
// arguments returns an empty set.
func And(sets ...*IntSet) *IntSet {
	if len(sets) == 0 {
		return New()
	}
	r := sets[0].Copy()
	for _, s := range sets[1:] {
		r.AndInPlace(s)
	}
	return r
}

// Sub returns a with b's members removed.
func Sub(a, b *IntSet) *IntSet {
	r := a.Copy()
	r.SubInPlace(b)
	return r
}

// Xor returns the symmetric difference of a and b.
func Xor(a, b *IntSet) *IntSet {
	r := a.Copy()
	r.XorInPlace(b)
	return r
}

// Equal reports whether s and other contain the same members.
func (s *IntSet) Equal(other *IntSet) bool {
	if s == nil && other == nil {
		return true
	}
	an, aok := s.IsAll()
	bn, bok := other.IsAll()
	if aok && bok {
		return an == bn
	}
	a, b := s.Copy(), other.Copy()
	a.materialize()
	b.materialize()
	return a.bm.Equals(b.bm)
}

// IsEmpty reports whether the set has no members.
func (s *IntSet) IsEmpty() bool {
	if s == nil {
		return true
	}
	if n, ok := s.IsAll(); ok {
		return n == 0
	}
	return s.bm.IsEmpty()
}

// Encode serializes s to its most compact tagged binary form. A still
// symbolic ALL(n) is encoded without materializing.
func (s *IntSet) Encode() []byte {
	if s == nil {
		return []byte{tagSparse, 0}
	}
	if n, ok := s.IsAll(); ok {
		buf := make([]byte, 1, 10)
		buf[0] = tagAll
		return appendUvarint(buf, n)
	}

	arr := s.bm.ToArray()
	sparse := encodeSparse(arr)
	best := sparse

	if run := encodeRun(arr); len(run) < len(best) {
		best = run
	}
	if dense, err := encodeDense(s.bm); err == nil && len(dense) < len(best) {
		best = dense
	}
	return best
}

// Decode parses a blob produced by Encode, inferring the encoding from
// its leading tag byte, and returns the number of bytes consumed so
// callers embedding an IntSet inside a larger structure (dumbcode's list
// and dict values) can find the next value without a length prefix.
func Decode(blob []byte) (*IntSet, int, error) {
	if len(blob) == 0 {
		return New(), 0, nil
	}
	tag, rest := blob[0], blob[1:]
	switch tag {
	case tagAll:
		n, used := binary.Uvarint(rest)
		if used <= 0 {
			return nil, 0, fmt.Errorf("intset: corrupt ALL header")
		}
		return All(n), 1 + used, nil
	case tagSparse:
		return decodeSparse(rest)
	case tagRun:
		return decodeRun(rest)
	case tagDense:
		sz, used := binary.Uvarint(rest)
		if used <= 0 {
			return nil, 0, fmt.Errorf("intset: corrupt dense header")
		}
		body := rest[used:]
		if uint64(len(body)) < sz {
			return nil, 0, fmt.Errorf("intset: truncated dense body")
		}
		bm := roaring.New()
		if err := bm.UnmarshalBinary(body[:sz]); err != nil {
			return nil, 0, fmt.Errorf("intset: decode dense: %w", err)
		}
		return &IntSet{bm: bm}, 1 + used + int(sz), nil
	default:
		return nil, 0, fmt.Errorf("intset: unknown encoding tag %q", tag)
	}
}

// DecodeValue is a convenience wrapper for Decode that drops the
// consumed-length result, for callers that already know blob holds
// exactly one encoded IntSet and nothing else.
func DecodeValue(blob []byte) (*IntSet, error) {
	s, _, err := Decode(blob)
	return s, err
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func encodeSparse(arr []uint32) []byte {
	buf := make([]byte, 1, 4+len(arr)*2)
	buf[0] = tagSparse
	buf = appendUvarint(buf, uint64(len(arr)))
	var prev uint32
	for i, v := range arr {
		if i == 0 {
			buf = appendUvarint(buf, uint64(v))
		} else {
			buf = appendUvarint(buf, uint64(v-prev))
		}
		prev = v
	}
	return buf
}

func decodeSparse(rest []byte) (*IntSet, int, error) {
	consumed := 1 // tag byte
	count, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, 0, fmt.Errorf("intset: corrupt sparse header")
	}
	rest = rest[n:]
	consumed += n
	bm := roaring.New()
	var cur uint64
	for i := uint64(0); i < count; i++ {
		d, n := binary.Uvarint(rest)
		if n <= 0 {
			return nil, 0, fmt.Errorf("intset: corrupt sparse body")
		}
		rest = rest[n:]
		consumed += n
		if i == 0 {
			cur = d
		} else {
			cur += d
		}
		bm.Add(uint32(cur))
	}
	return &IntSet{bm: bm}, consumed, nil
}

// run describes a maximal sequence of consecutive integers.
type run struct {
	start, length uint32
}

func runsOf(arr []uint32) []run {
	var runs []run
	for i := 0; i < len(arr); {
		start := arr[i]
		j := i + 1
		for j < len(arr) && arr[j] == arr[j-1]+1 {
			j++
		}
		runs = append(runs, run{start: start, length: uint32(j - i)})
		i = j
	}
	return runs
}

func encodeRun(arr []uint32) []byte {
	runs := runsOf(arr)
	buf := make([]byte, 1, 4+len(runs)*3)
	buf[0] = tagRun
	buf = appendUvarint(buf, uint64(len(runs)))
	var prevEnd uint64
	for i, rn := range runs {
		var startDelta uint64
		if i == 0 {
			startDelta = uint64(rn.start)
		} else {
			startDelta = uint64(rn.start) - prevEnd
		}
		buf = appendUvarint(buf, startDelta)
		buf = appendUvarint(buf, uint64(rn.length-1))
		prevEnd = uint64(rn.start) + uint64(rn.length)
	}
	return buf
}

func decodeRun(rest []byte) (*IntSet, int, error) {
	consumed := 1 // tag byte
	count, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, 0, fmt.Errorf("intset: corrupt run header")
	}
	rest = rest[n:]
	consumed += n
	bm := roaring.New()
	var prevEnd uint64
	for i := uint64(0); i < count; i++ {
		startDelta, n := binary.Uvarint(rest)
		if n <= 0 {
			return nil, 0, fmt.Errorf("intset: corrupt run body")
		}
		rest = rest[n:]
		consumed += n
		lenMinus1, n := binary.Uvarint(rest)
		if n <= 0 {
			return nil, 0, fmt.Errorf("intset: corrupt run body")
		}
		rest = rest[n:]
		consumed += n

		var start uint64
		if i == 0 {
			start = startDelta
		} else {
			start = prevEnd + startDelta
		}
		length := lenMinus1 + 1
		bm.AddRange(start, start+length)
		prevEnd = start + length
	}
	return &IntSet{bm: bm}, consumed, nil
}

// encodeDense serializes bm behind a tag byte and a uvarint length prefix
// naming the size of the roaring-serialized body, so a composite decoder
// (dumbcode's list/dict) can skip past it without its own trailing data.
func encodeDense(bm *roaring.Bitmap) ([]byte, error) {
	body, err := bm.ToBytes()
	if err != nil {
		return nil, err
	}
	header := appendUvarint([]byte{tagDense}, uint64(len(body)))
	return append(header, body...), nil
}

// SortInts returns a sorted copy of xs, used by callers building IntSets
// from unordered id lists (e.g. id-range query expansion).
func SortInts(xs []int) []int {
	out := append([]int(nil), xs...)
	sort.Ints(out)
	return out
}
