package lsm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/forgedb/forgedb/forgeerr"
)

// manifest lists the active SSTable files in flush order, oldest first.
type manifestFile struct {
	Files []string `json:"files"`
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.cfg.Dir, "manifest.json")
}

func (s *Store) loadManifest() error {
	path := s.manifestPath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: read manifest", err)
	}
	var m manifestFile
	if err := json.Unmarshal(data, &m); err != nil {
		return forgeerr.Wrap(forgeerr.Corrupt, "lsm: unmarshal manifest", err)
	}
	for _, f := range m.Files {
		sst, err := loadSSTable(filepath.Join(s.cfg.Dir, f))
		if err != nil {
			if s.cfg.DiagnosticHook != nil {
				s.cfg.DiagnosticHook(forgeerr.Corrupt, "lsm: sstable load failed: "+f)
			}
			return err
		}
		s.sstables = append(s.sstables, sst)
		if n := extractSeq(f); n > s.nextID.Load() {
			s.nextID.Store(n)
		}
	}
	return nil
}

func (s *Store) saveManifest() error {
	names := make([]string, len(s.sstables))
	for i, sst := range s.sstables {
		names[i] = filepath.Base(sst.path)
	}
	data, err := json.Marshal(manifestFile{Files: names})
	if err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: marshal manifest", err)
	}
	tmp := s.manifestPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: write manifest tmp", err)
	}
	if err := os.Rename(tmp, s.manifestPath()); err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: rename manifest", err)
	}
	return nil
}

// extractSeq parses the numeric id out of an "sst-<n>.log" filename.
func extractSeq(filename string) uint64 {
	const prefix, suffix = "sst-", ".log"
	base := filepath.Base(filename)
	if len(base) <= len(prefix)+len(suffix) || !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, suffix) {
		return 0
	}
	mid := base[len(prefix) : len(base)-len(suffix)]
	n, err := strconv.ParseUint(mid, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func loadSSTable(path string) (*sstable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, forgeerr.Wrap(forgeerr.Io, "lsm: open sstable", err)
	}
	defer f.Close()

	sst := &sstable{path: path, index: make(map[string]int)}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	for scanner.Scan() {
		var e entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, forgeerr.Wrap(forgeerr.Corrupt, "lsm: sstable record", err)
		}
		sst.index[string(e.Key)] = len(sst.entries)
		sst.entries = append(sst.entries, e)
		if e.Seq > sst.seq {
			sst.seq = e.Seq
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, forgeerr.Wrap(forgeerr.Io, "lsm: scan sstable", err)
	}
	return sst, nil
}

// Flush seals the memtable and writes it to a new immutable SSTable.
// The sealed content is written to a uniquely named file before the
// store's SSTable list is swapped in, so a crash mid-write leaves the
// store recoverable: the new file is either complete and visible, or
// absent and the data is still in the WAL for the next replay.
func (s *Store) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return classifyCtxErr(err)
	}

	s.mu.Lock()
	if len(s.memtable) == 0 {
		s.mu.Unlock()
		return nil
	}
	sealed := s.memtable
	s.memtable = make(map[string]entry)
	s.memSize = 0
	s.mu.Unlock()

	id := s.nextID.Add(1)
	path := filepath.Join(s.cfg.Dir, fmt.Sprintf("sst-%d.log", id))

	keys := make([]string, 0, len(sealed))
	for k := range sealed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: create sstable", err)
	}
	w := bufio.NewWriter(f)
	sst := &sstable{path: path, seq: s.seq.Load(), index: make(map[string]int, len(keys))}
	var flushedBytes int64
	for _, k := range keys {
		e := sealed[k]
		data, merr := json.Marshal(e)
		if merr != nil {
			f.Close()
			return forgeerr.Wrap(forgeerr.Io, "lsm: marshal sstable entry", merr)
		}
		if _, werr := w.Write(append(data, '\n')); werr != nil {
			f.Close()
			return forgeerr.Wrap(forgeerr.Io, "lsm: write sstable", werr)
		}
		sst.index[k] = len(sst.entries)
		sst.entries = append(sst.entries, e)
		flushedBytes += int64(len(e.Key) + len(e.Value))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return forgeerr.Wrap(forgeerr.Io, "lsm: flush sstable writer", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return forgeerr.Wrap(forgeerr.Io, "lsm: sync sstable", err)
	}
	if err := f.Close(); err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: close sstable", err)
	}

	s.sstMu.Lock()
	s.sstables = append(append([]*sstable(nil), s.sstables...), sst)
	manifestErr := s.saveManifest()
	s.sstMu.Unlock()
	if manifestErr != nil {
		return manifestErr
	}

	// Truncate the WAL now that sealed entries are durable on disk; a
	// crash before this point simply replays the same entries again,
	// which is idempotent because the sstable write above overwrote
	// nothing and this truncate only runs after fsync succeeded.
	s.walMu.Lock()
	walErr := s.truncateWALLocked()
	s.walMu.Unlock()
	if walErr != nil {
		return walErr
	}

	s.metrics.flushes.Inc()
	s.metrics.flushBytes.Observe(float64(flushedBytes))
	s.cfg.Logger.WithFields(logrus.Fields{"sstable": filepath.Base(path), "bytes": flushedBytes}).
		Info("lsm: memtable flushed")
	return nil
}

// writeSSTable writes keys (already sorted) from merged to path as
// newline-delimited JSON entries, the same on-disk shape Flush produces,
// and returns the resulting in-memory sstable with seq set to the
// highest sequence number among the written entries.
func writeSSTable(path string, keys []string, merged map[string]entry) (*sstable, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, forgeerr.Wrap(forgeerr.Io, "lsm: create sstable", err)
	}
	w := bufio.NewWriter(f)
	sst := &sstable{path: path, index: make(map[string]int, len(keys))}
	for _, k := range keys {
		e := merged[k]
		data, merr := json.Marshal(e)
		if merr != nil {
			f.Close()
			return nil, forgeerr.Wrap(forgeerr.Io, "lsm: marshal sstable entry", merr)
		}
		if _, werr := w.Write(append(data, '\n')); werr != nil {
			f.Close()
			return nil, forgeerr.Wrap(forgeerr.Io, "lsm: write sstable", werr)
		}
		sst.index[k] = len(sst.entries)
		sst.entries = append(sst.entries, e)
		if e.Seq > sst.seq {
			sst.seq = e.Seq
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return nil, forgeerr.Wrap(forgeerr.Io, "lsm: flush sstable writer", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, forgeerr.Wrap(forgeerr.Io, "lsm: sync sstable", err)
	}
	if err := f.Close(); err != nil {
		return nil, forgeerr.Wrap(forgeerr.Io, "lsm: close sstable", err)
	}
	return sst, nil
}

func (s *Store) truncateWALLocked() error {
	if err := s.wal.Close(); err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: close WAL for truncate", err)
	}
	wal, err := os.Create(s.wal.Name())
	if err != nil {
		return forgeerr.Wrap(forgeerr.Io, "lsm: recreate WAL", err)
	}
	s.wal = wal
	return nil
}
