package search

import (
	"fmt"
	"strings"

	"github.com/BjarniRunar/moggie/dumbcode"
	"github.com/BjarniRunar/moggie/intset"
)

// MutateOp is one (op, keyword) step within a Mutate call: '+' adds,
// '-' removes. Or is the IntSet union sentinel behaviour from the Python
// original (`IntSet.Or`) collapsed here to the same '+' op, since Go has
// no analogous first-class operator value to carry through the wire.
type MutateOp struct {
	Op      byte // '+' or '-'
	Keyword string
}

// MutateResult reports the version allocated to a Mutate call and the
// history-ring slot its changeset was recorded in.
type MutateResult struct {
	Version   uint64
	HistoryID uint32
	Touched   []string
}

// historyChange is one keyword's before/after delta within a Mutate call,
// recorded into the history ring so HistoricMutations can undo/redo it.
type historyChange struct {
	kw   string
	idx  uint32
	iset *intset.IntSet // bits turned ON within scope
	oset *intset.IntSet // bits turned OFF within scope
}

// Mutate applies a batch of keyword add/remove ops to scope (spec §4.4's
// mutate): each op is resolved to a bucket, its IntSet intersected with
// scope to find what actually changed, and the changeset recorded in the
// history ring so HistoricMutations can undo/redo it later.
func (e *Engine) Mutate(scope *intset.IntSet, ops []MutateOp, opts Options) (MutateResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	version, touchKWs := e.touchLocked(0)

	var changes []historyChange
	touched := make([]string, 0, len(ops))

	apply := func(raw string, op byte) error {
		kw := normalizeKeyword(raw, opts.TagNamespace)
		if strings.HasPrefix(kw, "in:*") {
			return e.mutateNamespaceWildcard(kw, op, scope, &changes, &touched)
		}
		idx, _, err := e.keywordIndexLocked(kw, preferL1For(kw, opts.PreferL1), true)
		if err != nil {
			return err
		}
		bucket, err := e.loadBucket(idx)
		if err != nil {
			return err
		}
		before := bucket.Get([]byte(kw))
		if before == nil {
			before = intset.New()
		}
		var after *intset.IntSet
		switch op {
		case '+':
			after = intset.Or(before, scope)
			after = intset.Sub(after, e.deleted)
		case '-':
			after = intset.Sub(before, scope)
		default:
			return newErr(InvalidQuery, fmt.Sprintf("unknown mutate op %q", op), nil)
		}
		iset := intset.Sub(intset.And(after, scope), intset.And(before, scope))
		oset := intset.Sub(intset.And(before, scope), intset.And(after, scope))
		if err := bucket.Set([]byte(kw), after, firstComment(bucket, kw)); err != nil {
			return newErr(InvalidKey, "write bucket", err)
		}
		if err := e.saveBucketLocked(idx, bucket); err != nil {
			return err
		}
		changes = append(changes, historyChange{kw: kw, idx: idx, iset: iset, oset: oset})
		touched = append(touched, kw)
		return nil
	}

	for _, op := range ops {
		if op.Op == '+' && strings.Contains(op.Keyword, "*") && strings.HasPrefix(op.Keyword, "in:") {
			return MutateResult{}, newErr(InvalidQuery, "in:* wildcard is only valid for removal", nil)
		}
		if err := apply(op.Keyword, op.Op); err != nil {
			return MutateResult{}, err
		}
	}

	for _, kw := range touchKWs {
		if err := apply(kw, '+'); err != nil {
			return MutateResult{}, err
		}
	}

	histID, err := e.recordHistoryLocked(version, changes2dict(changes))
	if err != nil {
		return MutateResult{}, err
	}

	for _, c := range changes {
		e.pendingTerms[c.kw] = struct{}{}
	}

	return MutateResult{Version: version, HistoryID: histID, Touched: touched}, nil
}

// mutateNamespaceWildcard implements "in:*@ns" removal: every in: keyword
// under namespace ns has scope subtracted. Only '-' is legal (the tag
// table has no general notion of "add to every tag").
func (e *Engine) mutateNamespaceWildcard(kw string, op byte, scope *intset.IntSet, changes *[]historyChange, touched *[]string) error {
	if op != '-' {
		return newErr(InvalidQuery, "in:* wildcard is only valid for removal", nil)
	}
	ns := strings.TrimPrefix(kw, "in:*@")
	l1Begin := RecordFirstKeyword
	l1End := l1Begin + uint32(e.config.L1Keywords)
	for idx := l1Begin; idx < l1End; idx++ {
		if !e.store.Contains(idx) {
			continue
		}
		bucket, err := e.loadBucket(idx)
		if err != nil {
			return err
		}
		for _, kwb := range bucket.Keywords() {
			k := string(kwb)
			if !strings.HasPrefix(k, "in:") || !strings.HasSuffix(k, "@"+ns) {
				continue
			}
			before := bucket.Get(kwb)
			after := intset.Sub(before, scope)
			oset := intset.Sub(intset.And(before, scope), intset.And(after, scope))
			if err := bucket.Set(kwb, after, firstComment(bucket, k)); err != nil {
				return newErr(InvalidKey, "write bucket", err)
			}
			*changes = append(*changes, historyChange{kw: k, idx: idx, iset: intset.New(), oset: oset})
			*touched = append(*touched, k)
		}
		if err := e.saveBucketLocked(idx, bucket); err != nil {
			return err
		}
	}
	return nil
}

func changes2dict(changes []historyChange) dumbcode.List {
	out := make(dumbcode.List, 0, len(changes))
	for _, c := range changes {
		out = append(out, dumbcode.List{c.kw, c.iset, c.oset})
	}
	return out
}

// recordHistoryLocked allocates the next ring slot, writes the changeset,
// and advances histPos. The history ring holds historyRingSize slots
// (records RecordHistoryRingFirst..RecordHistoryRingLast); once exhausted
// it wraps and overwrites the oldest entry.
func (e *Engine) recordHistoryLocked(version uint64, changes dumbcode.List) (uint32, error) {
	slot := RecordHistoryRingFirst + (e.histPos % historyRingSize)
	e.histPos++
	entry := dumbcode.Dict{
		"id":      uint64(slot),
		"version": version,
		"changes": changes,
	}
	blob := dumbcode.Encode(entry)
	if err := e.store.Set(slot, blob); err != nil {
		return 0, newErr(StorageError, "write history entry", err)
	}
	if err := e.saveHistoryStatusLocked(); err != nil {
		return 0, err
	}
	return slot, nil
}

// HistoricMutations returns the (keyword, iset, oset) triples recorded at
// history ring slot id, for undo/redo. Undo re-applies with iset/oset
// swapped (turning back on what was turned off, and vice versa); redo
// re-applies as originally recorded.
func (e *Engine) HistoricMutations(id uint32, undo bool) ([]MutateOp, *intset.IntSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	raw, err := e.store.Get(id)
	if err != nil {
		return nil, nil, newErr(StorageError, "read history entry", err)
	}
	if len(raw) == 0 {
		return nil, nil, newErr(NotFound, fmt.Sprintf("no history entry at %d", id), nil)
	}
	decoded, err := dumbcode.DecodeAll(raw)
	if err != nil {
		return nil, nil, newErr(Corruption, "decode history entry", err)
	}
	dict, ok := decoded.(dumbcode.Dict)
	if !ok {
		return nil, nil, newErr(Corruption, "malformed history entry", nil)
	}
	changeList, _ := dict["changes"].(dumbcode.List)

	var ops []MutateOp
	scope := intset.New()
	for _, raw := range changeList {
		triple, ok := raw.(dumbcode.List)
		if !ok || len(triple) != 3 {
			continue
		}
		kw, _ := triple[0].(string)
		iset, _ := triple[1].(*intset.IntSet)
		oset, _ := triple[2].(*intset.IntSet)
		addBits, subBits := iset, oset
		if undo {
			addBits, subBits = oset, iset
		}
		if addBits != nil && !addBits.IsEmpty() {
			ops = append(ops, MutateOp{Op: '+', Keyword: kw})
			scope = intset.Or(scope, addBits)
		}
		if subBits != nil && !subBits.IsEmpty() {
			ops = append(ops, MutateOp{Op: '-', Keyword: kw})
			scope = intset.Or(scope, subBits)
		}
	}
	return ops, scope, nil
}

// RenameL1 renames an L1-resident keyword (e.g. a tag rename), moving its
// bucket content from oldKW to newKW. Both must resolve to keywords that
// prefer L1 placement (the common case: "in:" tags).
func (e *Engine) RenameL1(oldRaw, newRaw string, opts Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	oldKW := normalizeKeyword(oldRaw, opts.TagNamespace)
	newKW := normalizeKeyword(newRaw, opts.TagNamespace)

	oldIdx, found, err := e.keywordIndexLocked(oldKW, true, false)
	if err != nil {
		return err
	}
	if !found {
		return newErr(NotFound, fmt.Sprintf("keyword %q has no mapping", oldKW), nil)
	}
	bucket, err := e.loadBucket(oldIdx)
	if err != nil {
		return err
	}
	comment, set := bucket.Remove([]byte(oldKW))
	if err := e.saveBucketLocked(oldIdx, bucket); err != nil {
		return err
	}
	if err := e.store.DelKey(oldKW); err != nil {
		return newErr(StorageError, "delete old key mapping", err)
	}

	newIdx, _, err := e.keywordIndexLocked(newKW, true, true)
	if err != nil {
		return err
	}
	newBucket, err := e.loadBucket(newIdx)
	if err != nil {
		return err
	}
	existing := newBucket.Get([]byte(newKW))
	merged := set
	if existing != nil {
		merged = intset.Or(existing, set)
	}
	if err := newBucket.Set([]byte(newKW), merged, comment); err != nil {
		return newErr(InvalidKey, "write renamed bucket", err)
	}
	if err := e.saveBucketLocked(newIdx, newBucket); err != nil {
		return err
	}
	return nil
}
