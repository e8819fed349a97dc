package dag

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/forgedb/forgedb/cid"
)

// Block is the unit of content-addressed storage: payload bytes plus an
// ordered list of child CIDs. Its own CID is hash(payload || children);
// Timestamp is metadata only, never hashed (spec.md §3).
type Block struct {
	Payload   []byte    `json:"payload"`
	Children  []cid.CID `json:"children"`
	Timestamp int64     `json:"timestamp"`
}

// hashInput builds the exact byte sequence hashed to derive a block's
// CID: payload followed by each child CID's raw bytes, in order.
// Children order is part of the hash input, so reordering children
// changes identity (spec.md §4.2 "children order is preserved").
func hashInput(payload []byte, children []cid.CID) []byte {
	buf := make([]byte, 0, len(payload)+len(children)*cid.Size)
	buf = append(buf, payload...)
	for _, c := range children {
		buf = append(buf, c[:]...)
	}
	return buf
}

func blockCID(h cid.Hasher, payload []byte, children []cid.CID) cid.CID {
	return h.Compute(hashInput(payload, children))
}

// walEntry is the on-disk JSON shape for a block mirrored into the LSM
// under the ipld: prefix (spec.md §6).
type walEntry struct {
	Payload   []byte    `json:"payload"`
	Children  []cid.CID `json:"children"`
	Timestamp int64     `json:"timestamp"`
}

func encodeBlock(b Block) ([]byte, error) {
	return json.Marshal(walEntry{Payload: b.Payload, Children: b.Children, Timestamp: b.Timestamp})
}

func decodeBlock(data []byte) (Block, error) {
	var w walEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return Block{}, err
	}
	return Block{Payload: w.Payload, Children: w.Children, Timestamp: w.Timestamp}, nil
}

func newBlock(payload []byte, children []cid.CID) Block {
	return Block{Payload: payload, Children: children, Timestamp: time.Now().Unix()}
}

func blocksEqual(a, b Block) bool {
	return bytes.Equal(a.Payload, b.Payload) && sameChildren(a.Children, b.Children)
}

func sameChildren(a, b []cid.CID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
