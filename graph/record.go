// Package graph implements the Graph Version Manager: Node/Edge
// records over the Merkle DAG, branch pointers, and commit history,
// built on top of dag, lsm, and mvcc (spec.md §4.5).
package graph

import (
	"encoding/json"

	"github.com/forgedb/forgedb/cid"
	"github.com/forgedb/forgedb/dag"
	"github.com/forgedb/forgedb/forgeerr"
)

// NodeRecord is a vertex: ordered labels, a property map, and a kind
// tag used for typed scans (spec.md §3). Its block payload is its own
// canonical encoding; it has no DAG children (a leaf).
type NodeRecord struct {
	Labels     []string             `json:"labels"`
	Properties map[string]dag.Value `json:"properties"`
	Kind       string               `json:"kind"`
}

// EdgeRecord is a directed edge: source/target CIDs appear both in the
// payload (so they hash into edge identity) and as the block's DAG
// children (so traversal can follow them; spec.md §3).
type EdgeRecord struct {
	Source     cid.CID              `json:"source"`
	Target     cid.CID              `json:"target"`
	Label      string               `json:"label"`
	Properties map[string]dag.Value `json:"properties"`
}

// TransactionRecord captures the commit time and the set of blocks
// touched since the prior commit (spec.md §3's minimal form).
type TransactionRecord struct {
	Timestamp int64     `json:"timestamp"`
	Added     []cid.CID `json:"added"`
}

// CommitRecord references the transaction it cements and the prior
// commit(s) on the branch (zero for the initial commit, two or more
// for merges; spec.md §3).
type CommitRecord struct {
	TransactionCID cid.CID   `json:"transaction_cid"`
	Parents        []cid.CID `json:"parents"`
	Author         string    `json:"author"`
	Message        string    `json:"message"`
}

// canonicalPayload renders v's canonical JSON encoding, the bytes
// stored as a block's payload and hashed into its CID (cid.Canonicalize
// sorts keys and strips whitespace; spec.md §3).
func canonicalPayload(v any) ([]byte, error) {
	payload, err := cid.Canonicalize(v)
	if err != nil {
		return nil, forgeerr.Wrap(forgeerr.Io, "graph: canonicalize record", err)
	}
	return payload, nil
}

func decodeNode(block *dag.Block) (NodeRecord, error) {
	var rec NodeRecord
	if err := json.Unmarshal(block.Payload, &rec); err != nil {
		return NodeRecord{}, forgeerr.Wrap(forgeerr.Corrupt, "graph: decode node", err)
	}
	return rec, nil
}

func decodeEdge(block *dag.Block) (EdgeRecord, error) {
	var rec EdgeRecord
	if err := json.Unmarshal(block.Payload, &rec); err != nil {
		return EdgeRecord{}, forgeerr.Wrap(forgeerr.Corrupt, "graph: decode edge", err)
	}
	return rec, nil
}

func decodeTransaction(block *dag.Block) (TransactionRecord, error) {
	var rec TransactionRecord
	if err := json.Unmarshal(block.Payload, &rec); err != nil {
		return TransactionRecord{}, forgeerr.Wrap(forgeerr.Corrupt, "graph: decode transaction", err)
	}
	return rec, nil
}

func decodeCommit(block *dag.Block) (CommitRecord, error) {
	var rec CommitRecord
	if err := json.Unmarshal(block.Payload, &rec); err != nil {
		return CommitRecord{}, forgeerr.Wrap(forgeerr.Corrupt, "graph: decode commit", err)
	}
	return rec, nil
}
