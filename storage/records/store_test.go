package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	s, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetRoundTripUnencrypted(t *testing.T) {
	s := openTestStore(t, Options{})
	require.NoError(t, s.Set(5, []byte("hello")))

	got, err := s.Get(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
	assert.True(t, s.Contains(5))
	assert.Equal(t, uint32(6), s.Len())
}

func TestGetAbsentReturnsNilNoError(t *testing.T) {
	s := openTestStore(t, Options{})
	got, err := s.Get(42)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, s.Contains(42))
}

func TestSetEmptyDeletesRecord(t *testing.T) {
	s := openTestStore(t, Options{})
	require.NoError(t, s.Set(1, []byte("x")))
	require.NoError(t, s.Set(1, nil))

	got, err := s.Get(1)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, s.Contains(1))
}

func TestLenTracksHighestLiveIndex(t *testing.T) {
	s := openTestStore(t, Options{})
	require.NoError(t, s.Set(3, []byte("a")))
	require.NoError(t, s.Set(7, []byte("b")))
	assert.Equal(t, uint32(8), s.Len())

	require.NoError(t, s.Set(7, nil))
	assert.Equal(t, uint32(4), s.Len())
}

func TestEncryptedRoundTrip(t *testing.T) {
	var secret [32]byte
	copy(secret[:], []byte("0123456789abcdef0123456789abcdef"))
	s := openTestStore(t, Options{
		Keys: []Key{{Version: 1, Secret: secret}},
		Salt: []byte("test-salt"),
	})
	require.NoError(t, s.Set(10, []byte("super secret mail body")))
	got, err := s.Get(10)
	require.NoError(t, err)
	assert.Equal(t, []byte("super secret mail body"), got)
}

func TestSetKeyAndLookup(t *testing.T) {
	s := openTestStore(t, Options{})
	require.NoError(t, s.SetKey("in:inbox", 2001))
	idx, ok := s.Lookup("in:inbox")
	require.True(t, ok)
	assert.Equal(t, uint32(2001), idx)

	require.NoError(t, s.DelKey("in:inbox"))
	_, ok = s.Lookup("in:inbox")
	assert.False(t, ok)
}

func TestReopenReplaysSegmentsAndKeyMap(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, Options{Dir: dir})
	require.NoError(t, s.Set(100, []byte("persisted")))
	require.NoError(t, s.SetKey("in:inbox", 100))
	require.NoError(t, s.Close())

	s2 := openTestStore(t, Options{Dir: dir})
	got, err := s2.Get(100)
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)

	idx, ok := s2.Lookup("in:inbox")
	require.True(t, ok)
	assert.Equal(t, uint32(100), idx)
}

func TestSegmentRotation(t *testing.T) {
	s := openTestStore(t, Options{SegmentSize: 256})
	for i := uint32(0); i < 50; i++ {
		require.NoError(t, s.Set(i, []byte("0123456789")))
	}
	assert.True(t, len(s.segments) > 0, "expected at least one sealed segment after rotation")
	for i := uint32(0); i < 50; i++ {
		got, err := s.Get(i)
		require.NoError(t, err)
		assert.Equal(t, []byte("0123456789"), got)
	}
}

func TestDeleteEverythingRequiresConfirmation(t *testing.T) {
	s := openTestStore(t, Options{})
	require.NoError(t, s.Set(1, []byte("x")))
	err := s.DeleteEverything("not the confirmation")
	assert.Error(t, err)

	require.NoError(t, s.DeleteEverything(confirmDeleteEverything))
	assert.False(t, s.Contains(1))
	assert.Equal(t, uint32(0), s.Len())
}

func TestHashKeyIsDeterministic(t *testing.T) {
	s := openTestStore(t, Options{Salt: []byte("salt")})
	a := s.HashKey("in:inbox")
	b := s.HashKey("in:inbox")
	c := s.HashKey("in:sent")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
