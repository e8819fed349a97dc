package dag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/forgedb/forgedb/cid"
	"github.com/forgedb/forgedb/forgeerr"
	"github.com/forgedb/forgedb/lsm"
)

// blockPrefix is the reserved LSM key prefix blocks are mirrored under
// (spec.md §6: "ipld:<cid-hex>").
const blockPrefix = "ipld:"

func blockKey(c cid.CID) []byte {
	return []byte(blockPrefix + c.String())
}

// Store is the Merkle DAG block store: content-addressed, backed by an
// lsm.Store for durability and ordered access, fronted by a bounded LRU
// read cache the way the teacher's storage.go fronts its gateway reads
// with a hand-rolled diskLRU — here via the pack's off-the-shelf
// golang-lru instead of a second hand-rolled cache.
type Store struct {
	kv     *lsm.Store
	hasher cid.Hasher
	cache  *lru.Cache[cid.CID, Block]
}

// Config configures a Store.
type Config struct {
	KV          *lsm.Store
	Algorithm   cid.Algorithm
	CacheSize   int
}

// Open constructs a Store over an already-open lsm.Store.
func Open(cfg Config) (*Store, error) {
	if cfg.KV == nil {
		return nil, forgeerr.New(forgeerr.Validation, "dag: config.KV is required")
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[cid.CID, Block](size)
	if err != nil {
		return nil, forgeerr.Wrap(forgeerr.Io, "dag: create block cache", err)
	}
	return &Store{kv: cfg.KV, hasher: cid.NewHasher(cfg.Algorithm), cache: cache}, nil
}

// Put stores payload with the given children and returns its CID. The
// payload is hashed exactly as given; Put does not canonicalize it, so
// callers pass already-canonical bytes (graph's records go through
// cid.Canonicalize first). Idempotent: inserting identical content returns the
// already-stored CID without duplicating storage. Rejects writes whose
// children are not already present (closure policy, spec.md §9(a)).
func (s *Store) Put(ctx context.Context, payload []byte, children []cid.CID) (cid.CID, error) {
	for _, ch := range children {
		ok, err := s.Contains(ctx, ch)
		if err != nil {
			return cid.CID{}, err
		}
		if !ok {
			return cid.CID{}, forgeerr.New(forgeerr.MissingReference,
				fmt.Sprintf("dag: put references absent child %s", ch))
		}
	}

	c := blockCID(s.hasher, payload, children)
	if existing, err := s.Get(ctx, c); err != nil {
		return cid.CID{}, err
	} else if existing != nil {
		return c, nil // idempotent: identical content already stored
	}

	block := newBlock(payload, children)
	data, err := encodeBlock(block)
	if err != nil {
		return cid.CID{}, forgeerr.Wrap(forgeerr.Io, "dag: encode block", err)
	}
	if err := s.kv.Put(ctx, blockKey(c), data); err != nil {
		return cid.CID{}, err
	}
	s.cache.Add(c, block)
	return c, nil
}

// Get returns the block for c, or nil if absent.
func (s *Store) Get(ctx context.Context, c cid.CID) (*Block, error) {
	if block, ok := s.cache.Get(c); ok {
		return &block, nil
	}
	data, err := s.kv.Get(ctx, blockKey(c))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	block, err := decodeBlock(data)
	if err != nil {
		return nil, forgeerr.Wrap(forgeerr.Corrupt, "dag: decode block "+c.String(), err)
	}
	s.cache.Add(c, block)
	return &block, nil
}

// Contains reports whether c is present.
func (s *Store) Contains(ctx context.Context, c cid.CID) (bool, error) {
	block, err := s.Get(ctx, c)
	if err != nil {
		return false, err
	}
	return block != nil, nil
}

// ChildrenOf returns the ordered child CIDs of c, or a forgeerr.NotFound
// error if c is absent.
func (s *Store) ChildrenOf(ctx context.Context, c cid.CID) ([]cid.CID, error) {
	block, err := s.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, forgeerr.New(forgeerr.NotFound, "dag: "+c.String()+" not found")
	}
	return block.Children, nil
}

// GraphSummary describes the top block written by HashGraph.
type GraphSummary struct {
	VertexCount int    `json:"vertex_count"`
	EdgeCount   int    `json:"edge_count"`
	Kind        string `json:"kind"`
}

// HashGraph encodes every node and edge block (already stored
// individually by the caller) into a single top block whose children
// are the given CIDs and whose payload summarizes the graph, returning
// the root CID (spec.md §4.2).
func (s *Store) HashGraph(ctx context.Context, nodeAndEdgeCIDs []cid.CID, summary GraphSummary) (cid.CID, error) {
	payload, err := cid.Canonicalize(summary)
	if err != nil {
		return cid.CID{}, forgeerr.Wrap(forgeerr.Io, "dag: canonicalize graph summary", err)
	}
	return s.Put(ctx, payload, nodeAndEdgeCIDs)
}

// ComputeSubtreeRoot recomputes the subtree hash by walking children
// depth-first and re-hashing from leaves upward (spec.md §4.2). Used
// for verification, never for storage: on an uncorrupted subtree the
// result equals c itself.
func (s *Store) ComputeSubtreeRoot(ctx context.Context, c cid.CID) (cid.CID, error) {
	block, err := s.Get(ctx, c)
	if err != nil {
		return cid.CID{}, err
	}
	if block == nil {
		return cid.CID{}, forgeerr.New(forgeerr.NotFound, "dag: "+c.String()+" not found")
	}
	childHashes := make([]cid.CID, len(block.Children))
	for i, ch := range block.Children {
		h, err := s.ComputeSubtreeRoot(ctx, ch)
		if err != nil {
			return cid.CID{}, err
		}
		childHashes[i] = h
	}
	return blockCID(s.hasher, block.Payload, childHashes), nil
}

// VerifyIntegrity recomputes hash(payload || children) for every
// stored block and reports any whose recomputed hash no longer matches
// its key CID. Read-only; never mutates. Fan-out is bounded via
// errgroup, the same concurrency-limiting package the teacher's
// networking code imports from golang.org/x/sync.
func (s *Store) VerifyIntegrity(ctx context.Context) ([]cid.CID, error) {
	kvs, err := s.kv.Scan(ctx, []byte(blockPrefix))
	if err != nil {
		return nil, err
	}

	var mu corruptSet
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, kv := range kvs {
		kv := kv
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hex := strings.TrimPrefix(string(kv.Key), blockPrefix)
			key, err := cid.ParseCID(hex)
			if err != nil {
				return forgeerr.Wrap(forgeerr.Corrupt, "dag: malformed block key "+hex, err)
			}
			block, err := decodeBlock(kv.Value)
			if err != nil {
				mu.add(key)
				return nil
			}
			recomputed := blockCID(s.hasher, block.Payload, block.Children)
			if !recomputed.Equal(key) {
				mu.add(key)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mu.list(), nil
}

// DiffResult reports how two block stores differ.
type DiffResult struct {
	Identical bool
	Differing []cid.CID
	SelfOnly  []cid.CID
	OtherOnly []cid.CID
}

// Diff compares the block set of s against other. Because keys are
// content hashes, "differing" can only arise from storage corruption —
// the same CID present in both stores with mismatched bytes — and is
// reported defensively rather than assumed impossible.
func (s *Store) Diff(ctx context.Context, other *Store) (DiffResult, error) {
	selfKVs, err := s.kv.Scan(ctx, []byte(blockPrefix))
	if err != nil {
		return DiffResult{}, err
	}
	otherKVs, err := other.kv.Scan(ctx, []byte(blockPrefix))
	if err != nil {
		return DiffResult{}, err
	}

	selfSet := make(map[string][]byte, len(selfKVs))
	for _, kv := range selfKVs {
		selfSet[string(kv.Key)] = kv.Value
	}
	otherSet := make(map[string][]byte, len(otherKVs))
	for _, kv := range otherKVs {
		otherSet[string(kv.Key)] = kv.Value
	}

	var result DiffResult
	for k, v := range selfSet {
		ov, ok := otherSet[k]
		if !ok {
			result.SelfOnly = append(result.SelfOnly, keyToCID(k))
			continue
		}
		if string(v) != string(ov) {
			// Timestamp is metadata, not identity: only payload or
			// children disagreeing counts as a difference.
			sb, serr := decodeBlock(v)
			ob, oerr := decodeBlock(ov)
			if serr != nil || oerr != nil || !blocksEqual(sb, ob) {
				result.Differing = append(result.Differing, keyToCID(k))
			}
		}
	}
	for k := range otherSet {
		if _, ok := selfSet[k]; !ok {
			result.OtherOnly = append(result.OtherOnly, keyToCID(k))
		}
	}
	result.Identical = len(result.SelfOnly) == 0 && len(result.OtherOnly) == 0 && len(result.Differing) == 0
	return result, nil
}

func keyToCID(key string) cid.CID {
	hex := strings.TrimPrefix(key, blockPrefix)
	c, err := cid.ParseCID(hex)
	if err != nil {
		return cid.CID{}
	}
	return c
}

// corruptSet collects corrupt CIDs found across concurrent verification
// goroutines under a single mutex.
type corruptSet struct {
	mu   sync.Mutex
	cids []cid.CID
}

func (c *corruptSet) add(x cid.CID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cids = append(c.cids, x)
}

func (c *corruptSet) list() []cid.CID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]cid.CID(nil), c.cids...)
}
