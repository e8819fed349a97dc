package graph

import (
	"strconv"
	"strings"

	"github.com/forgedb/forgedb/cid"
)

// Reserved LSM key prefixes, all inside the one store (spec.md §6).
const (
	vertexPrefix      = "vertex:"
	cidToVertexPrefix = "cid_to_vertex:"
	edgePrefix        = "edge:"
	commitPrefix      = "commit:"
	branchPrefix      = "branch:"
	transactionPrefix = "transaction:"
	snapshotPrefix    = "snapshot:"
)

// markerValue is the presence marker stored under commitKey/transactionKey
// entries. A nil value is indistinguishable from an absent key in
// lsm.Store.Get, so existence markers need a non-nil byte.
var markerValue = []byte{1}

func vertexKey(alias uint64) []byte {
	return []byte(vertexPrefix + strconv.FormatUint(alias, 10))
}

func cidToVertexKey(c cid.CID) []byte {
	return []byte(cidToVertexPrefix + c.String())
}

func edgeKey(sourceAlias uint64, label string, targetAlias uint64) []byte {
	return []byte(edgePrefix + strconv.FormatUint(sourceAlias, 10) + ":" + label + ":" + strconv.FormatUint(targetAlias, 10))
}

func commitKey(c cid.CID) []byte {
	return []byte(commitPrefix + c.String())
}

func branchKey(name string) []byte {
	return []byte(branchPrefix + name)
}

func transactionKey(c cid.CID) []byte {
	return []byte(transactionPrefix + c.String())
}

func snapshotKey(label string) []byte {
	return []byte(snapshotPrefix + label)
}

// parseEdgeKey splits an edge:<src>:<label>:<tgt> key back into its
// three components. The label itself cannot contain ':' — enforced by
// CreateEdge.
func parseEdgeKey(key string) (sourceAlias uint64, label string, targetAlias uint64, ok bool) {
	rest := strings.TrimPrefix(key, edgePrefix)
	if rest == key {
		return 0, "", 0, false
	}
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return 0, "", 0, false
	}
	src, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, "", 0, false
	}
	tgt, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return 0, "", 0, false
	}
	return src, parts[1], tgt, true
}
