package mvcc

import (
	"context"

	"github.com/forgedb/forgedb/forgeerr"
)

// SnapshotHandle is a read-only view that sees only data committed at
// or before its timestamp (spec.md §4.4 visibility rule).
type SnapshotHandle struct {
	coord *Coordinator
	ts    int64
}

// SnapshotAt returns a read-only handle for timestamp ts.
func (c *Coordinator) SnapshotAt(ts int64) *SnapshotHandle {
	return &SnapshotHandle{coord: c, ts: ts}
}

// Timestamp returns the handle's visibility watermark.
func (h *SnapshotHandle) Timestamp() int64 { return h.ts }

// Get reads key's value as it stood at h's timestamp. Because the
// underlying store keeps only the latest version per key, a key
// committed again after h's timestamp has no historical value
// available here — materializing true point-in-time state for such
// keys is the graph package's job (it walks the commit DAG rather than
// reading the live KV store; spec.md §4.5 get_history/restore_snapshot).
func (h *SnapshotHandle) Get(ctx context.Context, key []byte) ([]byte, error) {
	if committedAt := h.coord.lastCommittedTS(string(key)); committedAt > h.ts {
		return nil, forgeerr.New(forgeerr.Conflict,
			"mvcc: key modified after snapshot timestamp, historical value not retained by this layer")
	}
	return h.coord.kv.Get(ctx, key)
}
