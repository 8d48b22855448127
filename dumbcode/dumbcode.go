// Package dumbcode implements the "dumb codec": a tagged, self-describing
// binary serializer used for every value the record store persists
// (config maps, history entries, wordblobs, IntSets). Every encoded value
// begins with a tag byte (or, for the compressed wrapper, a short ASCII
// header) that tells the decoder how to parse what follows, per spec §6.
//
// Supported tags: I/S/T/Z (intset.IntSet, see the intset package), L
// (list), D (dict), i/u (signed/unsigned integer), b (bytes), s (string),
// and the "c:<size>:" compressed wrapper (payload snappy-compressed,
// grounded on the teacher's use of snappy for large receipt blobs).
package dumbcode

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/snappy"

	"github.com/BjarniRunar/moggie/intset"
)

const (
	tagList       byte = 'L'
	tagDict       byte = 'D'
	tagInt        byte = 'i'
	tagUint       byte = 'u'
	tagBytes      byte = 'b'
	tagString     byte = 's'
	tagCompressed byte = 'c'
)

// Dict is the decoded form of a "D" value: an insertion-ordered map isn't
// required by the spec, so a plain map suffices.
type Dict = map[string]any

// List is the decoded form of an "L" value.
type List = []any

// Encode serializes v into its tagged binary form. Supported v types:
// *intset.IntSet, List, Dict, int, int64, uint, uint64, []byte, string.
func Encode(v any) []byte {
	switch t := v.(type) {
	case *intset.IntSet:
		return t.Encode()
	case List:
		return encodeList(t)
	case Dict:
		return encodeDict(t)
	case int:
		return encodeInt(int64(t))
	case int64:
		return encodeInt(t)
	case uint:
		return encodeUint(uint64(t))
	case uint64:
		return encodeUint(t)
	case []byte:
		return encodeBytes(t)
	case string:
		return encodeString(t)
	case nil:
		return encodeBytes(nil)
	default:
		panic(fmt.Sprintf("dumbcode: unsupported type %T", v))
	}
}

// EncodeCompressed encodes v, then wraps the result in the "c:<size>:"
// snappy wrapper if doing so is smaller than the uncompressed form and
// the payload is at least minSize bytes (a minSize of 0 sets no size floor;
// the result is still left unwrapped when compression does not shrink it).
func EncodeCompressed(v any, minSize int) []byte {
	raw := Encode(v)
	if len(raw) < minSize {
		return raw
	}
	compressed := snappy.Encode(nil, raw)
	header := fmt.Sprintf("%c:%d:", tagCompressed, len(raw))
	if len(header)+len(compressed) >= len(raw) {
		return raw
	}
	out := make([]byte, 0, len(header)+len(compressed))
	out = append(out, header...)
	out = append(out, compressed...)
	return out
}

// Decode parses a single dumb-coded value, returning it and the number
// of bytes consumed from blob.
func Decode(blob []byte) (any, int, error) {
	if len(blob) == 0 {
		return nil, 0, fmt.Errorf("dumbcode: empty input")
	}
	switch blob[0] {
	case 'I', 'S', 'T', 'Z':
		return decodeIntSet(blob)
	case tagList:
		return decodeList(blob)
	case tagDict:
		return decodeDict(blob)
	case tagInt:
		return decodeInt(blob)
	case tagUint:
		return decodeUint(blob)
	case tagBytes:
		return decodeBytes(blob)
	case tagString:
		return decodeStringValue(blob)
	case tagCompressed:
		return decodeCompressed(blob)
	default:
		return nil, 0, fmt.Errorf("dumbcode: unknown tag %q", blob[0])
	}
}

// DecodeAll decodes blob as a single value and errors if any bytes
// remain unconsumed.
func DecodeAll(blob []byte) (any, error) {
	v, n, err := Decode(blob)
	if err != nil {
		return nil, err
	}
	if n != len(blob) {
		return nil, fmt.Errorf("dumbcode: %d trailing bytes after decode", len(blob)-n)
	}
	return v, nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func appendVarint(buf []byte, v int64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func decodeIntSet(blob []byte) (any, int, error) {
	iset, consumed, err := intset.Decode(blob)
	if err != nil {
		return nil, 0, err
	}
	return iset, consumed, nil
}

func encodeInt(v int64) []byte {
	buf := []byte{tagInt}
	return appendVarint(buf, v)
}

func decodeInt(blob []byte) (any, int, error) {
	v, n := binary.Varint(blob[1:])
	if n <= 0 {
		return nil, 0, fmt.Errorf("dumbcode: corrupt int")
	}
	return v, 1 + n, nil
}

func encodeUint(v uint64) []byte {
	buf := []byte{tagUint}
	return appendUvarint(buf, v)
}

func decodeUint(blob []byte) (any, int, error) {
	v, n := binary.Uvarint(blob[1:])
	if n <= 0 {
		return nil, 0, fmt.Errorf("dumbcode: corrupt uint")
	}
	return v, 1 + n, nil
}

func encodeBytes(b []byte) []byte {
	buf := []byte{tagBytes}
	buf = appendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

func decodeBytes(blob []byte) (any, int, error) {
	ln, n := binary.Uvarint(blob[1:])
	if n <= 0 {
		return nil, 0, fmt.Errorf("dumbcode: corrupt bytes length")
	}
	start := 1 + n
	end := start + int(ln)
	if end > len(blob) {
		return nil, 0, fmt.Errorf("dumbcode: truncated bytes value")
	}
	out := make([]byte, ln)
	copy(out, blob[start:end])
	return out, end, nil
}

func encodeString(s string) []byte {
	buf := []byte{tagString}
	buf = appendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func decodeStringValue(blob []byte) (any, int, error) {
	ln, n := binary.Uvarint(blob[1:])
	if n <= 0 {
		return nil, 0, fmt.Errorf("dumbcode: corrupt string length")
	}
	start := 1 + n
	end := start + int(ln)
	if end > len(blob) {
		return nil, 0, fmt.Errorf("dumbcode: truncated string value")
	}
	return string(blob[start:end]), end, nil
}

func encodeList(l List) []byte {
	buf := []byte{tagList}
	buf = appendUvarint(buf, uint64(len(l)))
	for _, v := range l {
		buf = append(buf, Encode(v)...)
	}
	return buf
}

func decodeList(blob []byte) (any, int, error) {
	count, n := binary.Uvarint(blob[1:])
	if n <= 0 {
		return nil, 0, fmt.Errorf("dumbcode: corrupt list header")
	}
	pos := 1 + n
	out := make(List, 0, count)
	for i := uint64(0); i < count; i++ {
		v, consumed, err := Decode(blob[pos:])
		if err != nil {
			return nil, 0, fmt.Errorf("dumbcode: list element %d: %w", i, err)
		}
		out = append(out, v)
		pos += consumed
	}
	return out, pos, nil
}

func encodeDict(d Dict) []byte {
	buf := []byte{tagDict}
	buf = appendUvarint(buf, uint64(len(d)))
	for k, v := range d {
		buf = append(buf, encodeString(k)...)
		buf = append(buf, Encode(v)...)
	}
	return buf
}

func decodeDict(blob []byte) (any, int, error) {
	count, n := binary.Uvarint(blob[1:])
	if n <= 0 {
		return nil, 0, fmt.Errorf("dumbcode: corrupt dict header")
	}
	pos := 1 + n
	out := make(Dict, count)
	for i := uint64(0); i < count; i++ {
		kv, consumed, err := decodeStringValue(blob[pos:])
		if err != nil {
			return nil, 0, fmt.Errorf("dumbcode: dict key %d: %w", i, err)
		}
		pos += consumed
		v, consumed, err := Decode(blob[pos:])
		if err != nil {
			return nil, 0, fmt.Errorf("dumbcode: dict value %d: %w", i, err)
		}
		pos += consumed
		out[kv.(string)] = v
	}
	return out, pos, nil
}

func decodeCompressed(blob []byte) (any, int, error) {
	// Format: "c:<size>:" followed by snappy-compressed bytes running to
	// the end of blob (the wrapper always owns the remainder: callers
	// that need to know where it ends must track length out of band,
	// unlike the other dumb-coded values, whose decoders report where
	// they end).
	rest := blob[2:] // past "c:"
	idx := strings.IndexByte(string(rest), ':')
	if idx < 0 {
		return nil, 0, fmt.Errorf("dumbcode: malformed compressed header")
	}
	size, err := strconv.Atoi(string(rest[:idx]))
	if err != nil {
		return nil, 0, fmt.Errorf("dumbcode: malformed compressed size: %w", err)
	}
	compressed := rest[idx+1:]
	raw, err := snappy.Decode(make([]byte, 0, size), compressed)
	if err != nil {
		return nil, 0, fmt.Errorf("dumbcode: snappy decode: %w", err)
	}
	v, consumed, err := Decode(raw)
	if err != nil {
		return nil, 0, err
	}
	if consumed != len(raw) {
		return nil, 0, fmt.Errorf("dumbcode: trailing bytes inside compressed payload")
	}
	return v, len(blob), nil
}
