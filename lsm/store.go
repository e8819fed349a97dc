// Package lsm implements the durable ordered key-value layer: a mutable
// in-memory memtable backed by a write-ahead log, flushed to immutable
// sorted SSTable files, with background compaction.
//
// Grounded on the teacher's core/ledger.go (NewLedger's WAL replay via
// bufio.Scanner, snapshot/prune's "seal, write, truncate" rhythm) —
// the closest thing in the pack to a durable log-structured layer —
// generalized from one ledger's block log into a general-purpose
// ordered KV store with multiple SSTable tiers.
package lsm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/forgedb/forgedb/forgeerr"
)

// tombstone is the reserved sentinel value marking a deleted key. It is
// distinguished from "absent" (no entry at all) so that it can mask
// older writes across memtable/SSTable tiers.
var tombstone = []byte{0xff, 'T', 'O', 'M', 'B', 'S', 'T', 'O', 'N', 'E', 0xff}

func isTombstone(v []byte) bool { return bytes.Equal(v, tombstone) }

// CompactionPolicy selects how Compact chooses which SSTables to merge.
type CompactionPolicy int

const (
	// SizeTiered merges the two SSTables with the fewest entries.
	SizeTiered CompactionPolicy = iota
	// Manual disables automatic background compaction; Compact must be
	// invoked explicitly.
	Manual
)

// WALSyncMode controls how aggressively the write-ahead log is fsynced.
type WALSyncMode int

const (
	// SyncPerWrite fsyncs after every Put/Delete.
	SyncPerWrite WALSyncMode = iota
	// SyncPerCommit fsyncs once per logical caller-defined batch
	// (forgedb's mvcc Coordinator treats one transaction commit as one
	// batch and calls Sync explicitly).
	SyncPerCommit
	// SyncGroupCommit batches fsyncs on a timer window.
	SyncGroupCommit
)

// Config configures a Store.
type Config struct {
	// Dir is the store directory: manifest, sst-<n>.log, wal.log.
	Dir string
	// FlushThresholdBytes is the memtable size, in approximate bytes of
	// key+value payload, at which Put triggers an automatic flush.
	FlushThresholdBytes int64
	// CompactionPolicy selects the compaction strategy.
	CompactionPolicy CompactionPolicy
	// WALSyncMode controls fsync aggressiveness.
	WALSyncMode WALSyncMode
	// GroupCommitWindow is the fsync interval used when WALSyncMode is
	// SyncGroupCommit.
	GroupCommitWindow time.Duration
	// TombstoneGraceSeconds is how long a tombstone survives compaction
	// before being dropped for good, resolving spec.md §9 open question
	// (b): "longer than the longest live transaction."
	TombstoneGraceSeconds int64
	// Logger receives structured log output; defaults to logrus.StandardLogger.
	Logger *logrus.Logger
	// DiagnosticHook is invoked with Corrupt when an SSTable listed in
	// the manifest fails to load at Open.
	DiagnosticHook forgeerr.Hook
}

func (c *Config) setDefaults() {
	if c.FlushThresholdBytes <= 0 {
		c.FlushThresholdBytes = 4 << 20 // 4 MiB
	}
	if c.TombstoneGraceSeconds <= 0 {
		c.TombstoneGraceSeconds = 3600
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.GroupCommitWindow <= 0 {
		c.GroupCommitWindow = 50 * time.Millisecond
	}
}

// entry is one record in the memtable or an SSTable.
type entry struct {
	Key   []byte `json:"k"`
	Value []byte `json:"v"`
	Seq   uint64 `json:"s"`
	Ts    int64  `json:"t"` // unix seconds, used for tombstone grace-horizon accounting
}

// sstable is an immutable, sorted, on-disk tier.
type sstable struct {
	path    string
	seq     uint64 // entries written at or before the flush that produced this file carry seq <= this
	entries []entry
	index   map[string]int // key -> index into entries, for point lookups
}

func (s *sstable) get(key []byte) ([]byte, uint64, bool) {
	i, ok := s.index[string(key)]
	if !ok {
		return nil, 0, false
	}
	return s.entries[i].Value, s.entries[i].Seq, true
}

// Store is a tiered, durable, ordered key-value store: one mutable
// memtable plus a list of immutable SSTables, as specified in spec.md
// §4.3.
type Store struct {
	cfg Config

	mu       sync.RWMutex // guards memtable + memSize
	memtable map[string]entry
	memSize  int64

	sstMu    sync.RWMutex // guards sstables slice (atomic pointer-swap semantics)
	sstables []*sstable

	seq    atomic.Uint64
	walMu  sync.Mutex
	wal    *os.File
	nextID atomic.Uint64

	compactCh chan struct{}
	closeCh   chan struct{}
	wg        sync.WaitGroup

	metrics metrics
}

type metrics struct {
	flushes    prometheus.Counter
	compactns  prometheus.Counter
	flushBytes prometheus.Histogram
}

func newMetrics() metrics {
	return metrics{
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forgedb_lsm_flushes_total",
			Help: "Total number of memtable flushes.",
		}),
		compactns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forgedb_lsm_compactions_total",
			Help: "Total number of SSTable compactions.",
		}),
		flushBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forgedb_lsm_flush_bytes",
			Help:    "Size in bytes of flushed memtables.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
}

// Open opens (or creates) a store at cfg.Dir, replaying its
// write-ahead log the way the teacher's NewLedger replays ledger.wal.
func Open(cfg Config) (*Store, error) {
	cfg.setDefaults()
	if cfg.Dir == "" {
		return nil, forgeerr.New(forgeerr.Validation, "lsm: config.Dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, forgeerr.Wrap(forgeerr.Io, "lsm: create store dir", err)
	}

	s := &Store{
		cfg:       cfg,
		memtable:  make(map[string]entry),
		compactCh: make(chan struct{}, 1),
		closeCh:   make(chan struct{}),
		metrics:   newMetrics(),
	}

	if err := s.loadManifest(); err != nil {
		return nil, err
	}

	walPath := filepath.Join(cfg.Dir, "wal.log")
	wal, err := os.OpenFile(walPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, forgeerr.Wrap(forgeerr.Io, "lsm: open WAL", err)
	}
	s.wal = wal

	if err := s.replayWAL(); err != nil {
		_ = wal.Close()
		return nil, err
	}

	if cfg.CompactionPolicy != Manual {
		s.wg.Add(1)
		go s.compactionLoop()
	}

	if cfg.WALSyncMode == SyncGroupCommit {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ticker := time.NewTicker(cfg.GroupCommitWindow)
			defer ticker.Stop()
			for {
				select {
				case <-s.closeCh:
					return
				case <-ticker.C:
					_ = s.Sync()
				}
			}
		}()
	}

	return s, nil
}

// replayWAL reads unflushed memtable mutations recorded since the last
// successful flush, the same bufio.Scanner-per-line shape as
// NewLedger's WAL replay.
func (s *Store) replayWAL() error {
	if _, err := s.wal.Seek(0, 0); err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: seek WAL", err)
	}
	scanner := bufio.NewScanner(s.wal)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	for scanner.Scan() {
		var e entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return forgeerr.Wrap(forgeerr.Corrupt, "lsm: WAL unmarshal", err)
		}
		s.memtable[string(e.Key)] = e
		s.memSize += int64(len(e.Key) + len(e.Value))
		if e.Seq > s.seq.Load() {
			s.seq.Store(e.Seq)
		}
	}
	if err := scanner.Err(); err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: WAL scan", err)
	}
	if _, err := s.wal.Seek(0, 2); err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: seek WAL end", err)
	}
	return nil
}

// Put inserts key/value into the memtable, appending to the WAL first.
// If the memtable size crosses the configured threshold, a flush is
// triggered synchronously before Put returns.
func (s *Store) Put(ctx context.Context, key, value []byte) error {
	return s.write(ctx, key, value)
}

// Delete inserts a tombstone for key, masking older writes.
func (s *Store) Delete(ctx context.Context, key []byte) error {
	return s.write(ctx, key, tombstone)
}

func (s *Store) write(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return classifyCtxErr(err)
	}
	seq := s.seq.Add(1)
	e := entry{Key: key, Value: value, Seq: seq, Ts: time.Now().Unix()}
	data, err := json.Marshal(e)
	if err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: marshal WAL entry", err)
	}

	s.walMu.Lock()
	_, werr := s.wal.Write(append(data, '\n'))
	if werr == nil && s.cfg.WALSyncMode == SyncPerWrite {
		werr = s.wal.Sync()
	}
	s.walMu.Unlock()
	if werr != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: write WAL", werr)
	}

	s.mu.Lock()
	s.memtable[string(key)] = e
	s.memSize += int64(len(key) + len(value))
	shouldFlush := s.memSize >= s.cfg.FlushThresholdBytes
	s.mu.Unlock()

	if shouldFlush {
		if err := s.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Sync fsyncs the WAL; used by callers batching writes under
// SyncPerCommit.
func (s *Store) Sync() error {
	s.walMu.Lock()
	defer s.walMu.Unlock()
	if err := s.wal.Sync(); err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: sync WAL", err)
	}
	return nil
}

// Get probes the memtable first, then every SSTable, keeping the
// highest-Seq hit. Table position in s.sstables does not track
// recency — compaction can append a merged table (carrying an older
// Seq than a table it didn't touch) to the end of the list — so Get
// compares Seq explicitly instead of trusting slice order, the same
// tiebreak Scan already applies.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyCtxErr(err)
	}
	s.mu.RLock()
	if e, ok := s.memtable[string(key)]; ok {
		s.mu.RUnlock()
		if isTombstone(e.Value) {
			return nil, nil
		}
		return e.Value, nil
	}
	s.mu.RUnlock()

	s.sstMu.RLock()
	tables := s.sstables // capture the pointer-swap snapshot
	s.sstMu.RUnlock()

	var (
		best    []byte
		bestSeq uint64
		found   bool
	)
	for _, t := range tables {
		v, seq, ok := t.get(key)
		if !ok {
			continue
		}
		if !found || seq > bestSeq {
			best, bestSeq, found = v, seq, true
		}
	}
	if !found || isTombstone(best) {
		return nil, nil
	}
	return best, nil
}

// Close stops background compaction and closes the WAL.
func (s *Store) Close() error {
	close(s.closeCh)
	s.wg.Wait()
	s.walMu.Lock()
	defer s.walMu.Unlock()
	if s.wal == nil {
		return nil
	}
	return s.wal.Close()
}

func classifyCtxErr(err error) error {
	if err == context.Canceled {
		return forgeerr.Wrap(forgeerr.Cancelled, "lsm: operation cancelled", err)
	}
	return forgeerr.Wrap(forgeerr.TimedOut, "lsm: deadline exceeded", err)
}
