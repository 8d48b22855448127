package intset

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptySet(t *testing.T) {
	s := New()
	assert.True(t, s.IsEmpty())
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains(0))
}

func TestAddContains(t *testing.T) {
	s := New(1, 2, 3)
	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(3))
	assert.False(t, s.Contains(4))
	s.Add(4)
	assert.True(t, s.Contains(4))
	assert.Equal(t, 4, s.Len())
}

func TestAllSymbolic(t *testing.T) {
	s := All(5)
	n, ok := s.IsAll()
	require.True(t, ok)
	assert.Equal(t, uint64(5), n)
	assert.True(t, s.Contains(0))
	assert.True(t, s.Contains(4))
	assert.False(t, s.Contains(5))
	assert.Equal(t, 5, s.Len())
}

func TestAllRoundTripsWithoutMaterializing(t *testing.T) {
	s := All(1_000_000_000)
	blob := s.Encode()
	require.Equal(t, byte(tagAll), blob[0])
	// Encoding an unmaterialized ALL must stay tiny regardless of n.
	assert.Less(t, len(blob), 16)

	got, err := DecodeValue(blob)
	require.NoError(t, err)
	n, ok := got.IsAll()
	require.True(t, ok)
	assert.Equal(t, uint64(1_000_000_000), n)
}

func TestCopyIsIndependent(t *testing.T) {
	a := New(1, 2, 3)
	b := a.Copy()
	b.Add(4)
	assert.False(t, a.Contains(4))
	assert.True(t, b.Contains(4))
}

func TestOrAndSubXor(t *testing.T) {
	a := New(1, 2, 3)
	b := New(2, 3, 4)

	assert.ElementsMatch(t, []uint32{1, 2, 3, 4}, Or(a, b).Slice())
	assert.ElementsMatch(t, []uint32{2, 3}, And(a, b).Slice())
	assert.ElementsMatch(t, []uint32{1}, Sub(a, b).Slice())
	assert.ElementsMatch(t, []uint32{1, 4}, Xor(a, b).Slice())
}

func TestEquality(t *testing.T) {
	a := New(1, 2, 3)
	b := New(3, 2, 1)
	c := New(1, 2)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, All(10).Equal(All(10)))
	assert.False(t, All(10).Equal(All(11)))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]int{
		{},
		{0},
		{0, 1, 2, 3, 4, 5},      // one long run
		{1, 3, 5, 7, 1000000},  // sparse, scattered
		{0, 1, 2, 100, 101, 102, 500}, // mixed runs
	}
	for _, c := range cases {
		s := New(c...)
		blob := s.Encode()
		got, err := DecodeValue(blob)
		require.NoError(t, err)
		assert.True(t, s.Equal(got), "case %v", c)
	}
}

func TestEncodeChoosesCompactEncodingForDenseSet(t *testing.T) {
	s := New()
	for i := 0; i < 100000; i++ {
		s.Add(uint32(i))
	}
	blob := s.Encode()
	// A contiguous dense run should never be encoded as a 100k-entry
	// sparse list; the run-length encoder collapses it to one run.
	assert.Less(t, len(blob), 64)
	got, err := DecodeValue(blob)
	require.NoError(t, err)
	assert.True(t, s.Equal(got))
}

func TestOrAndSubMatchNaiveSetMath(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for trial := 0; trial < 25; trial++ {
		na, nb := rnd.Intn(2000), rnd.Intn(2000)
		am, bm := map[int]bool{}, map[int]bool{}
		a, b := New(), New()
		for i := 0; i < na; i++ {
			v := rnd.Intn(100000)
			am[v] = true
			a.Add(uint32(v))
		}
		for i := 0; i < nb; i++ {
			v := rnd.Intn(100000)
			bm[v] = true
			b.Add(uint32(v))
		}

		wantOr, wantAnd, wantSub, wantXor := map[int]bool{}, map[int]bool{}, map[int]bool{}, map[int]bool{}
		for v := range am {
			wantOr[v] = true
			if bm[v] {
				wantAnd[v] = true
			} else {
				wantSub[v] = true
				wantXor[v] = true
			}
		}
		for v := range bm {
			wantOr[v] = true
			if !am[v] {
				wantXor[v] = true
			}
		}

		assertSetEqual(t, wantOr, Or(a, b))
		assertSetEqual(t, wantAnd, And(a, b))
		assertSetEqual(t, wantSub, Sub(a, b))
		assertSetEqual(t, wantXor, Xor(a, b))
	}
}

func assertSetEqual(t *testing.T, want map[int]bool, got *IntSet) {
	t.Helper()
	gotSlice := got.Slice()
	assert.Equal(t, len(want), len(gotSlice))
	for _, v := range gotSlice {
		assert.True(t, want[int(v)], "unexpected member %d", v)
	}
}

func TestIterator(t *testing.T) {
	s := New(5, 1, 3)
	it := s.Iterator()
	var got []uint32
	for it.HasNext() {
		got = append(got, it.Next())
	}
	assert.Equal(t, []uint32{1, 3, 5}, got)
}
