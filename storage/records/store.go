// Package records implements the sparse, append-friendly, page-oriented
// persistent record store described in spec §4.2: a map from small u32
// record numbers to opaque byte blobs, with an optional per-record AES-GCM
// envelope, a hashed-key secondary index, and an LRU read cache.
//
// Segment files are append-only logs of (idx, envelope) entries, grounded
// on the teacher's bolt/lmdb-backed ObjectDatabase wrapper pattern
// (ethdb/memory_database.go) and its constructor idiom, with sealed
// segments memory-mapped for reads the way the teacher's KV layer expects
// mmap-friendly backing files.
package records

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/c2h5oh/datasize"
	"github.com/edsrzf/mmap-go"
	lru "github.com/hashicorp/golang-lru"

	"github.com/BjarniRunar/moggie/mlog"
)

// DefaultSegmentSize is the target size before a segment is sealed and a
// new one opened, matching the teacher's own ShardLimit-style constant
// (ethdb/bitmapdb/dbutils.go: "ShardLimit = 3 * datasize.KB", scaled up
// here since our records are full mail-keyword buckets, not single shards).
const DefaultSegmentSize = 8 * datasize.MB

// DefaultCacheSize is the number of decoded records kept in the read cache.
const DefaultCacheSize = 4096

const keyMapFilename = "keymap.dc"

// confirmDeleteEverything is the literal callers must pass to
// DeleteEverything, guarding against an accidental destructive call.
const confirmDeleteEverything = "yes-delete-everything"

// Key is one AES-256 key selectable by a single key-version byte. Multiple
// keys may be open at once to support rotation; writes always use the
// newest (highest Version).
type Key struct {
	Version byte
	Secret  [32]byte
}

// Options configures an opened Store.
type Options struct {
	Dir         string
	SegmentSize datasize.ByteSize
	CacheSize   int
	Keys        []Key  // empty means records are stored unencrypted
	Salt        []byte // salt mixed into HashKey; optional (Keys and SetKey also work with no salt)
	Log         *mlog.Logger
}

type location struct {
	segment int
	offset  int64
	length  int32 // 0 means tombstone (logical delete)
}

type segment struct {
	id   int
	path string
	file *os.File
	mm   mmap.MMap // non-nil once sealed read-only
	size int64
}

// Store is the on-disk record store described by spec §4.2.
type Store struct {
	mu sync.Mutex

	dir         string
	segmentSize int64
	log         *mlog.Logger

	segments []*segment // sealed, read-only, mmap'd
	active   *segment   // current append target

	index  map[uint32]location
	maxIdx int64 // highest idx ever observed occupied; -1 if none

	keyIndex map[[16]byte]uint32
	salt     []byte

	keys      []Key // sorted ascending by Version; last is newest
	cache     *lru.Cache
	closed    bool
}

// Open opens (creating if necessary) a record store rooted at opts.Dir,
// replaying existing segment files to rebuild the in-memory index.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("records: Dir is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("records: mkdir %s: %w", opts.Dir, err)
	}
	segSize := int64(opts.SegmentSize)
	if segSize <= 0 {
		segSize = int64(DefaultSegmentSize)
	}
	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	logger := opts.Log
	if logger == nil {
		logger = mlog.New("records")
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("records: new LRU cache: %w", err)
	}

	keys := append([]Key(nil), opts.Keys...)
	sortKeysByVersion(keys)

	s := &Store{
		dir:         opts.Dir,
		segmentSize: segSize,
		log:         logger,
		index:       make(map[uint32]location),
		maxIdx:      -1,
		keyIndex:    make(map[[16]byte]uint32),
		salt:        append([]byte(nil), opts.Salt...),
		keys:        keys,
		cache:       cache,
	}

	if err := s.loadSegments(); err != nil {
		return nil, err
	}
	s.recomputeMax()
	if err := s.loadKeyMap(); err != nil {
		return nil, err
	}
	return s, nil
}

// recomputeMax rescans the whole index to find the current highest live
// (non-tombstoned) record number. Used after replay, where a later
// segment may tombstone an index that an earlier segment's replay had
// already counted toward maxIdx.
func (s *Store) recomputeMax() {
	newMax := int64(-1)
	for idx, loc := range s.index {
		if loc.length > 0 && int64(idx) > newMax {
			newMax = int64(idx)
		}
	}
	s.maxIdx = newMax
}

func sortKeysByVersion(keys []Key) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1].Version > keys[j].Version; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}

func (s *Store) segmentPath(id int) string {
	return filepath.Join(s.dir, fmt.Sprintf("seg-%05d.dat", id))
}

// loadSegments discovers existing segment files in order, replays each to
// rebuild s.index, seals all but the last into read-only mmaps, and opens
// (or creates) the last one as the active append target.
func (s *Store) loadSegments() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("records: read dir: %w", err)
	}
	var ids []int
	for _, e := range entries {
		var id int
		if _, scanErr := fmt.Sscanf(e.Name(), "seg-%05d.dat", &id); scanErr == nil {
			ids = append(ids, id)
		}
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}

	if len(ids) == 0 {
		return s.openActiveSegment(0)
	}

	for i, id := range ids {
		path := s.segmentPath(id)
		f, err := os.OpenFile(path, os.O_RDWR, 0o644)
		if err != nil {
			return fmt.Errorf("records: open segment %d: %w", id, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return fmt.Errorf("records: stat segment %d: %w", id, err)
		}
		seg := &segment{id: id, path: path, file: f, size: info.Size()}
		if err := s.replaySegment(seg); err != nil {
			f.Close()
			return fmt.Errorf("records: replay segment %d: %w", id, err)
		}

		if i == len(ids)-1 {
			s.active = seg
		} else {
			if err := s.sealSegment(seg); err != nil {
				return err
			}
			s.segments = append(s.segments, seg)
		}
	}
	return nil
}

func (s *Store) openActiveSegment(id int) error {
	path := s.segmentPath(id)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("records: create segment %d: %w", id, err)
	}
	s.active = &segment{id: id, path: path, file: f}
	return nil
}

// sealSegment mmaps a fully-written segment read-only for subsequent reads.
func (s *Store) sealSegment(seg *segment) error {
	if seg.size == 0 {
		return nil
	}
	mm, err := mmap.Map(seg.file, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("records: mmap segment %d: %w", seg.id, err)
	}
	seg.mm = mm
	return nil
}

// replaySegment reads every (idx, envelope) entry in seg and updates
// s.index; later entries for the same idx (including zero-length
// tombstones) override earlier ones, matching "writing a record logically
// replaces the previous version".
func (s *Store) replaySegment(seg *segment) error {
	buf := make([]byte, seg.size)
	if _, err := seg.file.ReadAt(buf, 0); err != nil && seg.size > 0 {
		return err
	}
	var pos int64
	for pos < int64(len(buf)) {
		if len(buf)-int(pos) < 12 {
			break // trailing garbage from a crashed write; ignore
		}
		idx := binary.LittleEndian.Uint32(buf[pos : pos+4])
		envLen := int32(binary.LittleEndian.Uint32(buf[pos+4 : pos+8]))
		_ = binary.LittleEndian.Uint32(buf[pos+8 : pos+12]) // reserved/checksum slot
		entryStart := pos + 12
		if entryStart+int64(envLen) > int64(len(buf)) {
			break
		}
		s.index[idx] = location{segment: seg.id, offset: entryStart, length: envLen}
		if envLen > 0 && int64(idx) > s.maxIdx {
			s.maxIdx = int64(idx)
		}
		pos = entryStart + int64(envLen)
	}
	return nil
}

func (s *Store) segmentByID(id int) *segment {
	if s.active != nil && s.active.id == id {
		return s.active
	}
	for _, seg := range s.segments {
		if seg.id == id {
			return seg
		}
	}
	return nil
}

func (s *Store) readAt(loc location) ([]byte, error) {
	seg := s.segmentByID(loc.segment)
	if seg == nil {
		return nil, fmt.Errorf("records: unknown segment %d", loc.segment)
	}
	if seg.mm != nil {
		end := loc.offset + int64(loc.length)
		if end > int64(len(seg.mm)) {
			return nil, fmt.Errorf("records: corrupt location in segment %d", loc.segment)
		}
		out := make([]byte, loc.length)
		copy(out, seg.mm[loc.offset:end])
		return out, nil
	}
	out := make([]byte, loc.length)
	if _, err := seg.file.ReadAt(out, loc.offset); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the current plaintext bytes stored at idx, or nil if idx is
// absent. A corrupt record is treated as absent rather than returned.
func (s *Store) Get(idx uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("records: store closed")
	}
	if v, ok := s.cache.Get(idx); ok {
		return append([]byte(nil), v.([]byte)...), nil
	}
	loc, ok := s.index[idx]
	if !ok || loc.length == 0 {
		return nil, nil
	}
	envelope, err := s.readAt(loc)
	if err != nil {
		return nil, fmt.Errorf("records: read idx %d: %w", idx, err)
	}
	plain, err := s.decrypt(envelope)
	if err != nil {
		s.log.Warn("record decode failed, treating as absent", "idx", idx, "err", err)
		return nil, nil
	}
	s.cache.Add(idx, append([]byte(nil), plain...))
	return plain, nil
}

// Contains reports whether idx currently holds a live (non-tombstoned)
// value.
func (s *Store) Contains(idx uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.index[idx]
	return ok && loc.length > 0
}

// Len returns one past the largest occupied index.
func (s *Store) Len() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxIdx < 0 {
		return 0
	}
	return uint32(s.maxIdx) + 1
}

// Set replaces the value at idx. Passing empty data logically deletes the
// record.
func (s *Store) Set(idx uint32, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("records: store closed")
	}
	var envelope []byte
	if len(data) > 0 {
		var err error
		envelope, err = s.encrypt(data)
		if err != nil {
			return fmt.Errorf("records: encrypt idx %d: %w", idx, err)
		}
	}
	if err := s.appendEntry(idx, envelope); err != nil {
		return fmt.Errorf("records: write idx %d: %w", idx, err)
	}

	s.cache.Remove(idx)
	if len(data) == 0 {
		s.index[idx] = location{segment: s.active.id, length: 0}
		s.recomputeMaxIfNeeded(idx)
	} else {
		s.cache.Add(idx, append([]byte(nil), data...))
		if int64(idx) > s.maxIdx {
			s.maxIdx = int64(idx)
		}
	}
	return nil
}

// recomputeMaxIfNeeded is called after tombstoning idx; if idx was the
// current max, it rescans for the new highest live index.
func (s *Store) recomputeMaxIfNeeded(idx uint32) {
	if int64(idx) != s.maxIdx {
		return
	}
	s.recomputeMax()
}

func (s *Store) appendEntry(idx uint32, envelope []byte) error {
	if s.active.size+12+int64(len(envelope)) > s.segmentSize && s.active.size > 0 {
		if err := s.rotateSegment(); err != nil {
			return err
		}
	}
	var header [12]byte
	binary.LittleEndian.PutUint32(header[0:4], idx)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(envelope)))
	if _, err := s.active.file.WriteAt(header[:], s.active.size); err != nil {
		return err
	}
	if len(envelope) > 0 {
		if _, err := s.active.file.WriteAt(envelope, s.active.size+12); err != nil {
			return err
		}
	}
	loc := location{segment: s.active.id, offset: s.active.size + 12, length: int32(len(envelope))}
	s.active.size += 12 + int64(len(envelope))
	if len(envelope) > 0 {
		s.index[idx] = loc
	}
	return nil
}

func (s *Store) rotateSegment() error {
	old := s.active
	if err := old.file.Sync(); err != nil {
		return err
	}
	if err := s.sealSegment(old); err != nil {
		return err
	}
	s.segments = append(s.segments, old)
	return s.openActiveSegment(old.id + 1)
}

// HashKey deterministically hashes key into the 16-byte digest used as the
// secondary index's key (first 128 bits of SHA-256 over salt||key).
func (s *Store) HashKey(key string) [16]byte {
	h := sha256.New()
	h.Write(s.salt)
	h.Write([]byte(key))
	sum := h.Sum(nil)
	var out [16]byte
	copy(out[:], sum[:16])
	return out
}

// SetKey maintains the secondary key->index map.
func (s *Store) SetKey(key string, idx uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyIndex[s.HashKey(key)] = idx
	return s.saveKeyMapLocked()
}

// DelKey removes key from the secondary map.
func (s *Store) DelKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keyIndex, s.HashKey(key))
	return s.saveKeyMapLocked()
}

// Lookup returns the record index associated with key, if any.
func (s *Store) Lookup(key string) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.keyIndex[s.HashKey(key)]
	return idx, ok
}

// Flush syncs the active segment and the secondary key map to disk.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if s.active != nil {
		if err := s.active.file.Sync(); err != nil {
			return err
		}
	}
	return s.saveKeyMapLocked()
}

// Close flushes and releases all open file handles and mmaps.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.flushLocked(); err != nil {
		return err
	}
	for _, seg := range s.segments {
		if seg.mm != nil {
			seg.mm.Unmap()
		}
		seg.file.Close()
	}
	if s.active != nil {
		s.active.file.Close()
	}
	s.closed = true
	return nil
}

// DeleteEverything destroys all backing files. confirm must equal the
// literal "yes-delete-everything", guarding against accidental calls.
func (s *Store) DeleteEverything(confirm string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if confirm != confirmDeleteEverything {
		return fmt.Errorf("records: DeleteEverything requires explicit confirmation")
	}
	for _, seg := range s.segments {
		if seg.mm != nil {
			seg.mm.Unmap()
		}
		seg.file.Close()
	}
	if s.active != nil {
		s.active.file.Close()
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("records: delete everything: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	s.segments = nil
	s.index = make(map[uint32]location)
	s.keyIndex = make(map[[16]byte]uint32)
	s.maxIdx = -1
	s.cache.Purge()
	return s.openActiveSegment(0)
}

// encrypt wraps plain in the on-disk envelope: key_version || nonce(12) ||
// ciphertext || tag(16), using the newest configured key. If no keys are
// configured, plain is returned with a zero version byte and no nonce/tag
// (records stored unencrypted).
func (s *Store) encrypt(plain []byte) ([]byte, error) {
	if len(s.keys) == 0 {
		out := make([]byte, 1+len(plain))
		out[0] = 0
		copy(out[1:], plain)
		return out, nil
	}
	k := s.keys[len(s.keys)-1]
	block, err := aes.NewCipher(k.Secret[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := gcm.Seal(nil, nonce, plain, nil)
	out := make([]byte, 0, 1+len(nonce)+len(sealed))
	out = append(out, k.Version)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

func (s *Store) decrypt(envelope []byte) ([]byte, error) {
	if len(envelope) == 0 {
		return nil, nil
	}
	version := envelope[0]
	if version == 0 {
		return append([]byte(nil), envelope[1:]...), nil
	}
	var k *Key
	for i := range s.keys {
		if s.keys[i].Version == version {
			k = &s.keys[i]
			break
		}
	}
	if k == nil {
		return nil, fmt.Errorf("records: unknown key version %d", version)
	}
	block, err := aes.NewCipher(k.Secret[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(envelope) < 1+nonceSize {
		return nil, fmt.Errorf("records: truncated envelope")
	}
	nonce := envelope[1 : 1+nonceSize]
	ciphertext := envelope[1+nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
