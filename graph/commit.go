package graph

import (
	"context"
	"time"

	"github.com/forgedb/forgedb/cid"
	"github.com/forgedb/forgedb/forgeerr"
)

// Commit builds a Transaction block from the pending add set and a
// Commit block referencing it and the branch's current head as parent,
// then advances the branch pointer through an mvcc transaction (spec.md
// §4.5; §4.4's "transactions gate visibility through C4" data flow):
// the branch-head read is registered in the transaction's read set via
// tx.Get, and the pointer write is buffered via tx.Put, so
// Coordinator.Commit's optimistic validation — not a hand-rolled
// re-read — is what decides whether this commit or a racing one wins.
// The content-addressed transaction/commit blocks themselves never
// conflict (a given payload always hashes to the same CID and dag.Put
// is idempotent), so only the mutable branch pointer needs to flow
// through the coordinator. The loser gets a Conflict error and must
// retry against the new head.
func (m *Manager) Commit(ctx context.Context, branchName, author, message string) (cid.CID, error) {
	tx := m.coord.Begin(ctx)

	headBytes, err := tx.Get(ctx, branchKey(branchName))
	if err != nil {
		m.coord.Abort(tx)
		return cid.CID{}, err
	}
	if headBytes == nil {
		m.coord.Abort(tx)
		return cid.CID{}, forgeerr.New(forgeerr.NotFound, "graph: branch "+branchName+" not found")
	}
	var observedHead cid.CID
	copy(observedHead[:], headBytes)

	added := m.takePending()
	txRec := TransactionRecord{Timestamp: time.Now().Unix(), Added: added}
	txPayload, err := canonicalPayload(txRec)
	if err != nil {
		m.coord.Abort(tx)
		return cid.CID{}, err
	}
	txCID, err := m.dag.Put(ctx, txPayload, added)
	if err != nil {
		m.coord.Abort(tx)
		return cid.CID{}, err
	}
	tx.Put(transactionKey(txCID), markerValue)

	var parents []cid.CID
	if !observedHead.IsZero() {
		parents = []cid.CID{observedHead}
	}
	commitRec := CommitRecord{TransactionCID: txCID, Parents: parents, Author: author, Message: message}
	commitPayload, err := canonicalPayload(commitRec)
	if err != nil {
		m.coord.Abort(tx)
		return cid.CID{}, err
	}
	commitChildren := append([]cid.CID{txCID}, parents...)
	commitCID, err := m.dag.Put(ctx, commitPayload, commitChildren)
	if err != nil {
		m.coord.Abort(tx)
		return cid.CID{}, err
	}
	tx.Put(commitKey(commitCID), markerValue)
	tx.Put(branchKey(branchName), commitCID[:])

	if _, err := m.coord.Commit(ctx, tx); err != nil {
		return cid.CID{}, err
	}
	return commitCID, nil
}

// MergeBranch builds a commit on target whose parents are the current
// heads of both branches and advances target's pointer through the
// same mvcc-gated path as Commit. Content reconciliation is the
// caller's responsibility; this only records the merge topology
// (spec.md §4.5 — never fails for structural reasons).
func (m *Manager) MergeBranch(ctx context.Context, sourceName, targetName string) (cid.CID, error) {
	tx := m.coord.Begin(ctx)

	sourceHeadBytes, err := tx.Get(ctx, branchKey(sourceName))
	if err != nil {
		m.coord.Abort(tx)
		return cid.CID{}, err
	}
	if sourceHeadBytes == nil {
		m.coord.Abort(tx)
		return cid.CID{}, forgeerr.New(forgeerr.NotFound, "graph: branch "+sourceName+" not found")
	}
	targetHeadBytes, err := tx.Get(ctx, branchKey(targetName))
	if err != nil {
		m.coord.Abort(tx)
		return cid.CID{}, err
	}
	if targetHeadBytes == nil {
		m.coord.Abort(tx)
		return cid.CID{}, forgeerr.New(forgeerr.NotFound, "graph: branch "+targetName+" not found")
	}
	var sourceHead, targetHead cid.CID
	copy(sourceHead[:], sourceHeadBytes)
	copy(targetHead[:], targetHeadBytes)

	txRec := TransactionRecord{Timestamp: time.Now().Unix()}
	txPayload, err := canonicalPayload(txRec)
	if err != nil {
		m.coord.Abort(tx)
		return cid.CID{}, err
	}
	txCID, err := m.dag.Put(ctx, txPayload, nil)
	if err != nil {
		m.coord.Abort(tx)
		return cid.CID{}, err
	}
	tx.Put(transactionKey(txCID), markerValue)

	var parents []cid.CID
	if !targetHead.IsZero() {
		parents = append(parents, targetHead)
	}
	if !sourceHead.IsZero() {
		parents = append(parents, sourceHead)
	}
	commitRec := CommitRecord{TransactionCID: txCID, Parents: parents, Author: "", Message: "merge " + sourceName + " into " + targetName}
	commitPayload, err := canonicalPayload(commitRec)
	if err != nil {
		m.coord.Abort(tx)
		return cid.CID{}, err
	}
	commitChildren := append([]cid.CID{txCID}, parents...)
	commitCID, err := m.dag.Put(ctx, commitPayload, commitChildren)
	if err != nil {
		m.coord.Abort(tx)
		return cid.CID{}, err
	}
	tx.Put(commitKey(commitCID), markerValue)
	tx.Put(branchKey(targetName), commitCID[:])

	if _, err := m.coord.Commit(ctx, tx); err != nil {
		return cid.CID{}, err
	}
	return commitCID, nil
}

// RestoreSnapshot switches current working state to the graph reachable
// from a named branch, a label previously registered by CreateSnapshot,
// a literal commit CID (hex), or "HEAD" (the checked-out branch's
// current head, a no-op pointer-wise but clears pending state). No
// graph data is copied (spec.md §4.5).
func (m *Manager) RestoreSnapshot(ctx context.Context, identifier string) error {
	if identifier == "HEAD" {
		m.mu.Lock()
		m.pending = nil
		m.mu.Unlock()
		return nil
	}
	if data, err := m.kv.Get(ctx, branchKey(identifier)); err != nil {
		return err
	} else if data != nil {
		m.mu.Lock()
		m.currentBranch = identifier
		m.currentCommit = cid.CID{}
		m.pending = nil
		m.mu.Unlock()
		return nil
	}
	if data, err := m.kv.Get(ctx, snapshotKey(identifier)); err != nil {
		return err
	} else if data != nil {
		var c cid.CID
		copy(c[:], data)
		m.mu.Lock()
		m.currentBranch = ""
		m.currentCommit = c
		m.pending = nil
		m.mu.Unlock()
		return nil
	}
	c, err := cid.ParseCID(identifier)
	if err != nil {
		return forgeerr.New(forgeerr.Validation, "graph: restore_snapshot: unknown branch, snapshot, or commit "+identifier)
	}
	present, err := m.commitExists(ctx, c)
	if err != nil {
		return err
	}
	if !present {
		return forgeerr.New(forgeerr.NotFound, "graph: restore_snapshot: commit "+identifier+" not found")
	}
	m.mu.Lock()
	m.currentBranch = ""
	m.currentCommit = c
	m.pending = nil
	m.mu.Unlock()
	return nil
}

// HistoryEntry is one materialized appearance of a node across the
// commit chain (spec.md §4.5).
type HistoryEntry struct {
	Timestamp int64
	CommitCID cid.CID
	Node      NodeRecord
}

// GetHistory walks the current working state's commit chain backward
// (the checked-out branch's head, or a detached restore_snapshot
// target), materializing target at every commit whose transaction
// added it, and yields oldest-first.
func (m *Manager) GetHistory(ctx context.Context, target cid.CID) ([]HistoryEntry, error) {
	head, err := m.currentChainHead(ctx)
	if err != nil {
		return nil, err
	}
	chain, err := m.walkPrimaryChain(ctx, head) // newest-first
	if err != nil {
		return nil, err
	}

	var entries []HistoryEntry
	for i := len(chain) - 1; i >= 0; i-- { // oldest-first
		commitCID := chain[i]
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
			if !added.Equal(target) {
				continue
			}
			nodeBlock, err := m.dag.Get(ctx, target)
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
			entries = append(entries, HistoryEntry{Timestamp: txRec.Timestamp, CommitCID: commitCID, Node: node})
		}
	}
	return entries, nil
}
