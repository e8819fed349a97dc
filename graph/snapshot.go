package graph

import (
	"context"

	"github.com/forgedb/forgedb/cid"
	"github.com/forgedb/forgedb/forgeerr"
	"github.com/forgedb/forgedb/mvcc"
)

// CreateSnapshot names the current working state's commit (the
// checked-out branch's head, or the commit a detached restore landed
// on) as a restore point (spec.md §4.5's create_snapshot(label)). It captures
// the coordinator's current commit watermark as an mvcc.SnapshotHandle
// — memoized via PutSnapshot the way spec.md §4.4 describes the
// snapshot cache — and separately records label -> head commit CID so
// restore_snapshot(label) can retarget the graph's working state
// exactly, the same mechanism restore_snapshot already uses for a
// literal commit CID.
func (m *Manager) CreateSnapshot(ctx context.Context, label string) (*mvcc.SnapshotHandle, error) {
	if label == "" {
		return nil, forgeerr.New(forgeerr.Validation, "graph: snapshot label must not be empty")
	}
	head, err := m.currentChainHead(ctx)
	if err != nil {
		return nil, err
	}

	tx := m.coord.Begin(ctx)
	ts := tx.SnapshotTimestamp()
	m.coord.Abort(tx)

	handle := m.coord.SnapshotAt(ts)
	m.coord.PutSnapshot(ts, handle)

	if err := m.kv.Put(ctx, snapshotKey(label), head[:]); err != nil {
		return nil, err
	}
	return handle, nil
}

// currentChainHead resolves the commit the manager's working state is
// currently anchored to: the checked-out branch's head, or the commit
// a detached restore_snapshot landed on. The zero CID means nothing is
// reachable yet (a fresh branch with no commits).
func (m *Manager) currentChainHead(ctx context.Context) (cid.CID, error) {
	m.mu.Lock()
	branch := m.currentBranch
	detached := m.currentCommit
	m.mu.Unlock()
	if branch != "" {
		return m.headOf(ctx, branch)
	}
	return detached, nil
}

// FoundNode pairs a node's CID with its decoded record, the shape
// ScanNodesByKind returns.
type FoundNode struct {
	CID  cid.CID
	Node NodeRecord
}

// ScanNodesByKind returns every node of the given kind reachable from
// the manager's current working state (spec.md §4.5 "all nodes of kind
// K"). It walks the current commit chain's transaction add-sets rather
// than a flat lsm.Store.Scan over the global vertex index: a vertex
// alias is assigned the moment CreateNode runs, long before (or
// instead of) any commit, so a global scan would keep surfacing nodes
// after restore_snapshot retargets the working state to a point before
// they existed — exactly the S4 time-travel property this scan exists
// to serve. The chain walk reuses GetHistory's traversal, which is the
// spec's one other "materialize from the commit DAG" operation.
func (m *Manager) ScanNodesByKind(ctx context.Context, kind string) ([]FoundNode, error) {
	head, err := m.currentChainHead(ctx)
	if err != nil {
		return nil, err
	}
	chain, err := m.walkPrimaryChain(ctx, head)
	if err != nil {
		return nil, err
	}

	seen := make(map[cid.CID]struct{})
	var found []FoundNode
	for _, commitCID := range chain {
		block, err := m.dag.Get(ctx, commitCID)
		if err != nil {
			return nil, err
		}
		if block == nil {
			continue
		}
		commitRec, err := decodeCommit(block)
		if err != nil {
			return nil, err
		}
		txBlock, err := m.dag.Get(ctx, commitRec.TransactionCID)
		if err != nil {
			return nil, err
		}
		if txBlock == nil {
			continue
		}
		txRec, err := decodeTransaction(txBlock)
		if err != nil {
			return nil, err
		}
		for _, added := range txRec.Added {
			if _, dup := seen[added]; dup {
				continue
			}
			seen[added] = struct{}{}
			nodeBlock, err := m.dag.Get(ctx, added)
			if err != nil {
				return nil, err
			}
			if nodeBlock == nil {
				continue
			}
			node, err := decodeNode(nodeBlock)
			if err != nil {
				continue // not a node (e.g. an edge added in the same transaction)
			}
			if node.Kind == kind {
				found = append(found, FoundNode{CID: added, Node: node})
			}
		}
	}
	return found, nil
}
