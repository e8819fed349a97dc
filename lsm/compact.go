package lsm

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/forgedb/forgedb/forgeerr"
)

// compactionLoop is the single long-lived background goroutine that
// triggers size-tiered compaction, the same "background goroutine
// watching a channel" shape the teacher uses for its own periodic
// maintenance (e.g. ledger pruning triggered from applyBlock rather
// than a timer, but the same "don't block the write path" intent).
func (s *Store) compactionLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.closeCh:
			return
		case <-s.compactCh:
			if err := s.Compact(context.Background()); err != nil {
				s.cfg.Logger.WithError(err).Warn("lsm: background compaction failed")
			}
		case <-ticker.C:
			s.sstMu.RLock()
			n := len(s.sstables)
			s.sstMu.RUnlock()
			if n >= 2 {
				if err := s.Compact(context.Background()); err != nil {
					s.cfg.Logger.WithError(err).Warn("lsm: background compaction failed")
				}
			}
		}
	}
}

// Compact merges SSTables, discarding superseded versions and
// tombstoned keys older than the configured grace horizon. It must not
// block reads: Get always captures its own snapshot of s.sstables
// before probing, so a reader that started before Compact swaps the
// list completes against the old list consistently.
func (s *Store) Compact(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return classifyCtxErr(err)
	}

	s.sstMu.Lock()
	tables := append([]*sstable(nil), s.sstables...)
	s.sstMu.Unlock()
	if len(tables) < 2 {
		return nil
	}

	// size-tiered: merge the two smallest tables by entry count,
	// per spec.md §4.3's "smallest overlapping pair" policy.
	a, b := smallestPair(tables)

	merged := make(map[string]entry, len(tables[a].entries)+len(tables[b].entries))
	for _, e := range tables[a].entries {
		merged[string(e.Key)] = e
	}
	for _, e := range tables[b].entries {
		if existing, ok := merged[string(e.Key)]; !ok || e.Seq > existing.Seq {
			merged[string(e.Key)] = e
		}
	}

	now := time.Now().Unix()
	grace := s.cfg.TombstoneGraceSeconds
	keys := make([]string, 0, len(merged))
	for k, e := range merged {
		if isTombstone(e.Value) && tombstoneAge(e, now) > grace {
			continue // drop: older than the grace horizon
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	id := s.nextID.Add(1)
	path := filepath.Join(s.cfg.Dir, "sst-compact.tmp")
	final := filepath.Join(s.cfg.Dir, sstableName(id))

	newTable, err := writeSSTable(path, keys, merged)
	if err != nil {
		return err
	}
	if err := os.Rename(path, final); err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: rename compacted sstable", err)
	}
	newTable.path = final

	s.sstMu.Lock()
	remaining := make([]*sstable, 0, len(s.sstables))
	for i, t := range s.sstables {
		if i == a || i == b {
			continue
		}
		remaining = append(remaining, t)
	}
	remaining = append(remaining, newTable)
	s.sstables = remaining
	manifestErr := s.saveManifest()
	s.sstMu.Unlock()
	if manifestErr != nil {
		return manifestErr
	}

	_ = os.Remove(tables[a].path)
	_ = os.Remove(tables[b].path)

	s.metrics.compactns.Inc()
	s.cfg.Logger.WithFields(logrus.Fields{"result": filepath.Base(final), "keys": len(keys)}).
		Info("lsm: compaction complete")
	return nil
}

// tombstoneAge returns how many seconds have elapsed since e was
// written, using the wall-clock timestamp stamped on every write (see
// entry.Ts), so the grace horizon in Config.TombstoneGraceSeconds is
// measured against real elapsed time rather than sequence number.
func tombstoneAge(e entry, now int64) int64 {
	age := now - e.Ts
	if age < 0 {
		return 0
	}
	return age
}

// smallestPair returns the indices of the two tables with the fewest
// entries, the pair size-tiered compaction merges first.
func smallestPair(tables []*sstable) (int, int) {
	idx := make([]int, len(tables))
	for i := range tables {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		return len(tables[idx[i]].entries) < len(tables[idx[j]].entries)
	})
	return idx[0], idx[1]
}

func sstableName(id uint64) string {
	return "sst-" + strconv.FormatUint(id, 10) + ".log"
}
