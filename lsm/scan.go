package lsm

import (
	"context"
	"sort"
	"strings"
)

// KV is one key/value pair returned by Scan.
type KV struct {
	Key   []byte
	Value []byte
}

// Scan returns every live key with the given prefix, in ascending key
// order, merging the memtable and all SSTables the same way Get does:
// the newest write for a key wins, and a tombstone suppresses older
// values instead of being returned.
func (s *Store) Scan(ctx context.Context, prefix []byte) ([]KV, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyCtxErr(err)
	}

	latest := make(map[string][]byte)
	seen := make(map[string]uint64)

	s.sstMu.RLock()
	tables := s.sstables
	s.sstMu.RUnlock()
	for _, t := range tables {
		for _, e := range t.entries {
			if !strings.HasPrefix(string(e.Key), string(prefix)) {
				continue
			}
			k := string(e.Key)
			if seq, ok := seen[k]; ok && seq >= e.Seq {
				continue
			}
			seen[k] = e.Seq
			latest[k] = e.Value
		}
	}

	s.mu.RLock()
	for k, e := range s.memtable {
		if !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		if seq, ok := seen[k]; ok && seq >= e.Seq {
			continue
		}
		seen[k] = e.Seq
		latest[k] = e.Value
	}
	s.mu.RUnlock()

	keys := make([]string, 0, len(latest))
	for k := range latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]KV, 0, len(keys))
	for _, k := range keys {
		v := latest[k]
		if isTombstone(v) {
			continue
		}
		out = append(out, KV{Key: []byte(k), Value: v})
	}
	return out, nil
}
