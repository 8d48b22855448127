package records

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BjarniRunar/moggie/dumbcode"
)

// loadKeyMap reads the secondary key->index map from its on-disk dumb-coded
// dict file, if present. A missing file is not an error (fresh store).
func (s *Store) loadKeyMap() error {
	path := filepath.Join(s.dir, keyMapFilename)
	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("records: read key map: %w", err)
	}
	if len(blob) == 0 {
		return nil
	}
	decoded, err := dumbcode.DecodeAll(blob)
	if err != nil {
		return fmt.Errorf("records: decode key map: %w", err)
	}
	dict, ok := decoded.(dumbcode.Dict)
	if !ok {
		return fmt.Errorf("records: key map file is not a dict")
	}
	for k, v := range dict {
		if len(k) != 16 {
			continue
		}
		entry, ok := v.(dumbcode.List)
		if !ok || len(entry) != 2 {
			continue
		}
		idx, ok := entry[1].(uint64)
		if !ok {
			continue
		}
		var hash [16]byte
		copy(hash[:], k)
		s.keyIndex[hash] = uint32(idx)
	}
	return nil
}

// saveKeyMapLocked persists the full secondary key map to its known
// filename, matching spec §6: "a single dumb-coded dict {hash16 -> (u64
// position, u32 index)} persisted to a known filename inside the store
// directory." The position field is not meaningful for our whole-file
// rewrite strategy and is always written as 0.
func (s *Store) saveKeyMapLocked() error {
	dict := make(dumbcode.Dict, len(s.keyIndex))
	for hash, idx := range s.keyIndex {
		dict[string(hash[:])] = dumbcode.List{uint64(0), uint64(idx)}
	}
	blob := dumbcode.Encode(dict)

	path := filepath.Join(s.dir, keyMapFilename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return fmt.Errorf("records: write key map: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("records: rename key map: %w", err)
	}
	return nil
}
