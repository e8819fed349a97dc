// Package cid implements the content identifier at the base of forgedb's
// Merkle DAG: a deterministic 32-byte hash over canonicalized payloads,
// with hex codec and value-type equality/ordering.
//
// Grounded on original_source/crates/000-core/kotoba-cid/src/lib.rs
// (Cid(pub [u8; 32]), to_hex/from_hex, SHA-256/BLAKE3 algorithm choice)
// and kept as an immutable, cheap-to-copy value type the way the
// teacher treats its own Hash / Address array types in common_structs.go.
package cid

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"

	"crypto/sha256"
)

// Size is the fixed byte length of a CID.
const Size = 32

// CID is a 32-byte content identifier. It is a value type: cheap to
// copy, never mutated in place.
type CID [Size]byte

// Algorithm selects the hash function used to compute CIDs for a store.
// Frozen at store construction; mixing algorithms within one store is
// forbidden (spec invariant).
type Algorithm int

const (
	// AlgoSHA256 is the baseline hash algorithm.
	AlgoSHA256 Algorithm = iota
	// AlgoBLAKE3 is an alternative algorithm selectable at store
	// construction.
	AlgoBLAKE3
)

func (a Algorithm) String() string {
	switch a {
	case AlgoSHA256:
		return "sha2-256"
	case AlgoBLAKE3:
		return "blake3"
	default:
		return "unknown"
	}
}

// ParseAlgorithm maps a config string to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "", "sha2_256", "sha2-256", "sha256":
		return AlgoSHA256, nil
	case "blake3":
		return AlgoBLAKE3, nil
	default:
		return 0, fmt.Errorf("cid: unknown hash algorithm %q", s)
	}
}

// Hasher computes CIDs using a fixed algorithm.
type Hasher struct {
	algo Algorithm
}

// NewHasher returns a Hasher bound to algo.
func NewHasher(algo Algorithm) Hasher { return Hasher{algo: algo} }

// Algorithm reports the hash algorithm this Hasher was constructed with.
func (h Hasher) Algorithm() Algorithm { return h.algo }

// sum hashes raw bytes with the configured algorithm.
func (h Hasher) sum(data []byte) CID {
	switch h.algo {
	case AlgoBLAKE3:
		var out CID
		sum := blake3.Sum256(data)
		copy(out[:], sum[:])
		return out
	default:
		return CID(sha256.Sum256(data))
	}
}

// Compute hashes a raw payload directly (no canonicalization). Used by
// the dag package, whose callers (graph) canonicalize Node/Edge payloads
// before storing them, and which concatenates child CIDs per spec.md §3's
// "hash of (payload || children)" block identity rule.
func (h Hasher) Compute(payload []byte) CID {
	return h.sum(payload)
}

// ComputeStructured canonicalizes v (via Canonicalize) then hashes the
// resulting bytes. Two semantically equal values with different
// in-memory key order produce the same CID.
func (h Hasher) ComputeStructured(v any) (CID, error) {
	enc, err := Canonicalize(v)
	if err != nil {
		return CID{}, err
	}
	return h.sum(enc), nil
}

// String renders the CID as lowercase hex, the canonical textual form.
func (c CID) String() string {
	return hex.EncodeToString(c[:])
}

// ParseCID decodes a 64-char hex string into a CID.
func ParseCID(s string) (CID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return CID{}, fmt.Errorf("cid: invalid hex: %w", err)
	}
	if len(b) != Size {
		return CID{}, fmt.Errorf("cid: expected %d bytes, got %d", Size, len(b))
	}
	var out CID
	copy(out[:], b)
	return out, nil
}

// IsZero reports whether c is the zero-value CID (used as "no parent"
// or "absent" sentinel in commit/branch bookkeeping).
func (c CID) IsZero() bool {
	return c == CID{}
}

// Equal reports byte-wise equality.
func (c CID) Equal(other CID) bool { return c == other }

// Less gives a total, byte-wise order over CIDs — used to keep child
// link lists and scan results reproducible.
func (c CID) Less(other CID) bool {
	for i := range c {
		if c[i] != other[i] {
			return c[i] < other[i]
		}
	}
	return false
}

// Compare returns -1, 0, or 1 per the usual comparator contract.
func (c CID) Compare(other CID) int {
	switch {
	case c.Equal(other):
		return 0
	case c.Less(other):
		return -1
	default:
		return 1
	}
}

// MarshalText implements encoding.TextMarshaler so CIDs serialize as
// their hex string in JSON, matching the canonical textual form.
func (c CID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CID) UnmarshalText(text []byte) error {
	parsed, err := ParseCID(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
