package lsm

import (
	"context"
	"testing"
	"time"
)

func tmpStore(t *testing.T, mutate func(*Config)) *Store {
	t.Helper()
	cfg := Config{Dir: t.TempDir()}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := tmpStore(t, func(c *Config) { c.CompactionPolicy = Manual })
	ctx := context.Background()

	if err := s.Put(ctx, []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, []byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("got %q want v1", got)
	}
}

func TestGetMissingKeyIsNilNotError(t *testing.T) {
	s := tmpStore(t, func(c *Config) { c.CompactionPolicy = Manual })
	got, err := s.Get(context.Background(), []byte("missing"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing key, got %q", got)
	}
}

func TestDeleteMasksOlderWrite(t *testing.T) {
	s := tmpStore(t, func(c *Config) { c.CompactionPolicy = Manual })
	ctx := context.Background()

	if err := s.Put(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, []byte("k")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := s.Get(ctx, []byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected tombstoned key to read as absent, got %q", got)
	}
}

func TestFlushMovesMemtableToSSTable(t *testing.T) {
	s := tmpStore(t, func(c *Config) { c.CompactionPolicy = Manual })
	ctx := context.Background()
	if err := s.Put(ctx, []byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	s.mu.RLock()
	n := len(s.memtable)
	s.mu.RUnlock()
	if n != 0 {
		t.Fatalf("expected empty memtable after flush, got %d entries", n)
	}
	got, err := s.Get(ctx, []byte("a"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "1" {
		t.Fatalf("got %q want 1", got)
	}
}

func TestReopenReplaysWAL(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir, CompactionPolicy: Manual}

	s1, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.Put(context.Background(), []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.Get(context.Background(), []byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q want v after WAL replay", got)
	}
}

func TestFlushTriggeredByThreshold(t *testing.T) {
	s := tmpStore(t, func(c *Config) {
		c.CompactionPolicy = Manual
		c.FlushThresholdBytes = 1
	})
	ctx := context.Background()
	if err := s.Put(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.mu.RLock()
	n := len(s.memtable)
	s.mu.RUnlock()
	if n != 0 {
		t.Fatalf("expected automatic flush once threshold crossed, memtable still has %d entries", n)
	}
}

func TestScanReturnsPrefixMatchesInOrder(t *testing.T) {
	s := tmpStore(t, func(c *Config) { c.CompactionPolicy = Manual })
	ctx := context.Background()
	for _, kv := range []struct{ k, v string }{
		{"vertex:b", "2"},
		{"vertex:a", "1"},
		{"edge:x", "ignored"},
	} {
		if err := s.Put(ctx, []byte(kv.k), []byte(kv.v)); err != nil {
			t.Fatalf("Put(%s): %v", kv.k, err)
		}
	}
	out, err := s.Scan(ctx, []byte("vertex:"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if string(out[0].Key) != "vertex:a" || string(out[1].Key) != "vertex:b" {
		t.Fatalf("expected ascending key order, got %q then %q", out[0].Key, out[1].Key)
	}
}

func TestScanExcludesTombstones(t *testing.T) {
	s := tmpStore(t, func(c *Config) { c.CompactionPolicy = Manual })
	ctx := context.Background()
	if err := s.Put(ctx, []byte("vertex:a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, []byte("vertex:a")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	out, err := s.Scan(ctx, []byte("vertex:"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected tombstoned key excluded from scan, got %d results", len(out))
	}
}

func TestCompactMergesAndDropsStaleVersions(t *testing.T) {
	s := tmpStore(t, func(c *Config) { c.CompactionPolicy = Manual })
	ctx := context.Background()

	if err := s.Put(ctx, []byte("k"), []byte("old")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := s.Put(ctx, []byte("k"), []byte("new")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if err := s.Compact(ctx); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	s.sstMu.RLock()
	n := len(s.sstables)
	s.sstMu.RUnlock()
	if n != 1 {
		t.Fatalf("expected compaction to merge down to 1 sstable, got %d", n)
	}

	got, err := s.Get(ctx, []byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("got %q want newest version 'new' to win", got)
	}
}

func TestCompactDropsTombstonesPastGraceHorizon(t *testing.T) {
	s := tmpStore(t, func(c *Config) {
		c.CompactionPolicy = Manual
		c.TombstoneGraceSeconds = 1
	})
	ctx := context.Background()

	if err := s.Put(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := s.Delete(ctx, []byte("k")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	time.Sleep(2100 * time.Millisecond) // ages are whole seconds: guarantee an age of at least 2 > the 1-second grace horizon
	if err := s.Compact(ctx); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	s.sstMu.RLock()
	var total int
	for _, t := range s.sstables {
		total += len(t.entries)
	}
	s.sstMu.RUnlock()
	if total != 0 {
		t.Fatalf("expected tombstone past grace horizon to be dropped, found %d entries", total)
	}
}
