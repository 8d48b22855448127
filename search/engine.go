// Package search implements SearchEngine: two-tier keyword placement,
// add/delete/mutate/rename, tag namespaces, a monotonic version counter,
// a history ring with undo/redo, and the boolean query parser/evaluator
// described in spec §4.4. Grounded on the teacher's bulk-indexing shape
// (eth/stagedsync/stage_log_index.go's accumulate-then-flush pattern) for
// AddResults/DelResults, and on moggie/search/engine.py (original_source)
// for exact algorithmic semantics.
package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BjarniRunar/moggie/dumbcode"
	"github.com/BjarniRunar/moggie/intset"
	"github.com/BjarniRunar/moggie/mlog"
	"github.com/BjarniRunar/moggie/postinglist"
	"github.com/BjarniRunar/moggie/storage/records"
	"github.com/BjarniRunar/moggie/termmagic"
	"github.com/BjarniRunar/moggie/wordblob"
)

// Entry is one (id-or-ids, keywords) pair fed to AddResults/DelResults.
type Entry struct {
	IDs      *intset.IntSet
	Keywords []string
}

// NewEntry builds an Entry for a single message id.
func NewEntry(id uint32, keywords ...string) Entry {
	return Entry{IDs: intset.New(int(id)), Keywords: keywords}
}

// Options configures Engine mutating calls that accept a namespace/touch.
type Options struct {
	TagNamespace string
	Touch        bool
	// PreferL1 overrides the per-keyword default (any "in:" keyword
	// prefers L1); nil means "use the default".
	PreferL1 *bool
}

// Engine is the mail search engine of spec §4.4. The lock is a
// sync.Mutex, not a reentrant lock (Go's standard library has none): every
// exported method acquires it directly, and internal helpers never
// re-acquire it (they take the lock as a precondition instead). An
// exported method that calls another one (AddResults/DelResults calling
// UpdateTerms, Close calling Flush) releases the lock before the call.
type Engine struct {
	mu sync.Mutex

	store  *records.Store
	config Config
	log    *mlog.Logger

	partial *wordblob.Space
	aux     [3]*wordblob.Space // in memory only; records 2..4 are not read or written

	deleted *intset.IntSet
	maxint  uint64
	version uint64
	histPos uint32

	pendingTerms map[string]struct{}
}

// Open opens or creates an engine backed by a records.Store at opts.Dir.
func Open(opts records.Options) (*Engine, error) {
	store, err := records.Open(opts)
	if err != nil {
		return nil, newErr(StorageError, "open record store", err)
	}
	e := &Engine{
		store:        store,
		log:          mlog.New("search"),
		deleted:      intset.New(),
		pendingTerms: make(map[string]struct{}),
	}
	if err := e.loadConfig(); err != nil {
		return nil, err
	}
	if err := e.loadDeleted(); err != nil {
		return nil, err
	}
	if err := e.loadHistoryStatus(); err != nil {
		return nil, err
	}
	e.partial = wordblob.New(int(e.config.PartialListLen))
	for i := range e.aux {
		e.aux[i] = wordblob.New(int(e.config.PartialListLen))
	}
	return e, nil
}

func (e *Engine) loadConfig() error {
	raw, err := e.store.Get(RecordConfig)
	if err != nil {
		return newErr(StorageError, "read config record", err)
	}
	cfg := Defaults()
	if len(raw) > 0 {
		decoded, err := dumbcode.DecodeAll(raw)
		if err == nil {
			if dict, ok := decoded.(dumbcode.Dict); ok {
				cfg = configFromDict(dict).merge(Defaults())
			}
		} else {
			e.log.Warn("config record failed to decode, using defaults", "err", err)
		}
	}
	e.config = cfg
	return nil
}

// SaveConfig persists the current configuration to record 0.
func (e *Engine) SaveConfig() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	blob := dumbcode.Encode(dumbcode.Dict(configToDict(e.config)))
	if err := e.store.Set(RecordConfig, blob); err != nil {
		return newErr(StorageError, "write config record", err)
	}
	return nil
}

func (e *Engine) loadDeleted() error {
	raw, err := e.store.Get(RecordDeletedIDs)
	if err != nil {
		return newErr(StorageError, "read deleted-ids record", err)
	}
	if len(raw) == 0 {
		e.deleted = intset.New()
		return nil
	}
	s, err := intset.DecodeValue(raw)
	if err != nil {
		e.log.Warn("deleted-ids record failed to decode, starting empty", "err", err)
		e.deleted = intset.New()
		return nil
	}
	e.deleted = s
	return nil
}

func (e *Engine) saveDeletedLocked() error {
	if err := e.store.Set(RecordDeletedIDs, e.deleted.Encode()); err != nil {
		return newErr(StorageError, "write deleted-ids record", err)
	}
	return nil
}

func (e *Engine) loadHistoryStatus() error {
	raw, err := e.store.Get(RecordHistoryStatus)
	if err != nil {
		return newErr(StorageError, "read history status record", err)
	}
	if len(raw) == 0 {
		return nil
	}
	decoded, err := dumbcode.DecodeAll(raw)
	if err != nil {
		e.log.Warn("history status record failed to decode, resetting", "err", err)
		return nil
	}
	dict, ok := decoded.(dumbcode.Dict)
	if !ok {
		return nil
	}
	if v, ok := dict["ver"].(uint64); ok {
		e.version = v
	}
	if p, ok := dict["pos"].(uint64); ok {
		e.histPos = uint32(p)
	}
	return nil
}

func (e *Engine) saveHistoryStatusLocked() error {
	blob := dumbcode.Encode(dumbcode.Dict{"ver": e.version, "pos": uint64(e.histPos)})
	if err := e.store.Set(RecordHistoryStatus, blob); err != nil {
		return newErr(StorageError, "write history status record", err)
	}
	return nil
}

// l2Begin returns the first record index of the L2 region.
func (e *Engine) l2Begin() uint32 {
	return RecordFirstKeyword + uint32(e.config.L1Keywords)
}

// keywordIndexLocked resolves kw to a record index, per spec §4.4. If
// create is false, preferL1 is true and kw has no existing mapping, ok is
// false; a keyword placed in L2 always resolves to its hashed bucket with
// ok true.
func (e *Engine) keywordIndexLocked(kw string, preferL1, create bool) (idx uint32, ok bool, err error) {
	if existing, found := e.store.Lookup(kw); found {
		return existing, true, nil
	}
	if preferL1 {
		if !create {
			return 0, false, nil
		}
		l1Begin := RecordFirstKeyword
		l1End := l1Begin + uint32(e.config.L1Keywords)
		for i := l1Begin; i < l1End; i++ {
			if !e.store.Contains(i) {
				if err := e.store.SetKey(kw, i); err != nil {
					return 0, false, newErr(StorageError, "claim L1 slot", err)
				}
				return i, true, nil
			}
		}
		return 0, false, newErr(StorageError, "L1 keyword region is full", nil)
	}
	h := hash32([]byte(kw))
	idx = e.l2Begin() + (h % uint32(e.config.L2Buckets))
	return idx, true, nil
}

func hash32(b []byte) uint32 {
	var h uint32 = 2166136261
	for _, c := range b {
		h ^= uint32(c)
		h *= 16777619
	}
	return h
}

// loadBucket reads and decodes the posting-list bucket at idx. A missing
// or corrupt record yields an empty bucket, matching the store's own
// "treat as absent" contract.
func (e *Engine) loadBucket(idx uint32) (*postinglist.Bucket, error) {
	raw, err := e.store.Get(idx)
	if err != nil {
		return nil, newErr(StorageError, "read bucket", err)
	}
	b, err := postinglist.Decode(raw)
	if err != nil {
		e.log.Warn("bucket failed to decode, treating as empty", "idx", idx, "err", err)
		return postinglist.Decode(nil)
	}
	return b, nil
}

func (e *Engine) saveBucketLocked(idx uint32, b *postinglist.Bucket) error {
	blob, err := b.Encode()
	if err != nil {
		return newErr(InvalidKey, "encode bucket", err)
	}
	if err := e.store.Set(idx, blob); err != nil {
		return newErr(StorageError, "write bucket", err)
	}
	return nil
}

// normalizeKeyword applies spec §4.4 step 1: strip '*', rewrite tag: to
// in:, and scope in: keywords to a namespace.
func normalizeKeyword(raw, namespace string) string {
	kw := strings.Trim(raw, "*")
	if strings.HasPrefix(kw, "tag:") {
		kw = "in:" + kw[len("tag:"):]
	}
	if strings.HasPrefix(kw, "in:") {
		name := kw[len("in:"):]
		kw = "in:" + termmagic.TagQuote(name)
		if namespace != "" {
			kw += "@" + namespace
		}
	}
	return kw
}

func preferL1For(kw string, override *bool) bool {
	if override != nil {
		return *override
	}
	return strings.HasPrefix(kw, "in:")
}

// touchLocked returns the version/vdate keywords for the current transaction,
// advancing the version counter. version, if non-zero, reuses an already
// allocated version number instead of incrementing (used when replaying
// a mutation's changed-id set after the version was already bumped).
func (e *Engine) touchLocked(version uint64) (uint64, []string) {
	if version == 0 {
		e.version++
		version = e.version
	}
	kws := termmagic.VersionToKeywords(version)
	kws = append(kws, fmt.Sprintf("vdate:%d", version))
	return version, kws
}

// AddResult is returned by AddResults/DelResults.
type AddResult struct {
	Touched []string // keywords touched, now pending a wordblob update
}

// AddResults implements spec §4.4's add_results.
func (e *Engine) AddResults(entries []Entry, opts Options) (AddResult, error) {
	e.mu.Lock()
	res, err := e.applyResults(entries, opts, false)
	e.mu.Unlock()
	if err == nil {
		e.UpdateTerms(res.Touched)
	}
	return res, err
}

// DelResults implements spec §4.4's del_results.
func (e *Engine) DelResults(entries []Entry, opts Options) (AddResult, error) {
	e.mu.Lock()
	res, err := e.applyResults(entries, opts, true)
	e.mu.Unlock()
	if err == nil {
		e.UpdateTerms(res.Touched)
	}
	return res, err
}

func (e *Engine) applyResults(entries []Entry, opts Options, isDelete bool) (AddResult, error) {
	grouped := make(map[string]*intset.IntSet)

	addKW := func(kw string, ids *intset.IntSet) {
		if cur, ok := grouped[kw]; ok {
			grouped[kw] = intset.Or(cur, ids)
		} else {
			grouped[kw] = ids.Copy()
		}
	}

	var touchKWs []string
	if opts.Touch {
		_, touchKWs = e.touchLocked(0)
	}

	for _, ent := range entries {
		for _, raw := range ent.Keywords {
			kw := normalizeKeyword(raw, opts.TagNamespace)
			addKW(kw, ent.IDs)
		}
		if opts.TagNamespace != "" {
			addKW(normalizeKeyword("in:", opts.TagNamespace), ent.IDs)
		}
		if opts.Touch {
			for _, kw := range touchKWs {
				addKW(kw, ent.IDs)
			}
		}
	}

	type resolved = struct {
		kw  string
		idx uint32
		ids *intset.IntSet
	}
	var resolvedList []resolved
	for kw, ids := range grouped {
		idx, _, err := e.keywordIndexLocked(kw, preferL1For(kw, opts.PreferL1), true)
		if err != nil {
			return AddResult{}, err
		}
		resolvedList = append(resolvedList, resolved{kw: kw, idx: idx, ids: ids})
	}
	sortResolved(resolvedList)

	touched := make([]string, 0, len(resolvedList))
	for _, r := range resolvedList {
		bucket, err := e.loadBucket(r.idx)
		if err != nil {
			return AddResult{}, err
		}
		if isDelete {
			existing := bucket.Get([]byte(r.kw))
			if existing == nil {
				existing = intset.New()
			}
			remaining := intset.Sub(existing, r.ids)
			if err := bucket.Set([]byte(r.kw), remaining, firstComment(bucket, r.kw)); err != nil {
				return AddResult{}, newErr(InvalidKey, "write bucket", err)
			}
			if bucket.Get([]byte(r.kw)) == nil && strings.HasPrefix(r.kw, "in:") {
				if idx, found := e.store.Lookup(r.kw); found && idx == r.idx {
					_ = e.store.DelKey(r.kw)
				}
			}
		} else {
			if err := bucket.Add([]byte(r.kw), r.ids, e.deleted); err != nil {
				return AddResult{}, newErr(InvalidKey, "add ids", err)
			}
		}
		if err := e.saveBucketLocked(r.idx, bucket); err != nil {
			return AddResult{}, err
		}
		touched = append(touched, r.kw)
		e.pendingTerms[r.kw] = struct{}{}
	}

	var maxID uint64
	for _, ent := range entries {
		for _, id := range ent.IDs.Slice() {
			if uint64(id)+1 > maxID {
				maxID = uint64(id) + 1
			}
		}
	}
	if maxID > e.maxint {
		e.maxint = maxID
	}

	return AddResult{Touched: touched}, nil
}

func firstComment(b *postinglist.Bucket, kw string) []byte {
	comment, _ := b.GetWithComment([]byte(kw))
	return comment
}

func sortResolved(list []struct {
	kw  string
	idx uint32
	ids *intset.IntSet
}) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j-1].idx > list[j].idx; j-- {
			list[j-1], list[j] = list[j], list[j-1]
		}
	}
}

// Flush persists the engine's in-memory counters and flushes the
// underlying record store.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.saveDeletedLocked(); err != nil {
		return err
	}
	if err := e.saveHistoryStatusLocked(); err != nil {
		return err
	}
	if err := e.store.Flush(); err != nil {
		return newErr(StorageError, "flush record store", err)
	}
	return nil
}

// Close flushes and closes the underlying record store.
func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Close(); err != nil {
		return newErr(StorageError, "close record store", err)
	}
	return nil
}
