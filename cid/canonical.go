package cid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Canonicalize encodes v deterministically: object keys are sorted
// lexicographically, there is no insignificant whitespace, and numeric
// representation is stable. Two semantically equal payloads always
// produce the same bytes, and therefore the same CID.
//
// This follows RFC 8785 (JSON Canonicalization Scheme) in spirit, the
// same canonicalization the original Rust implementation names
// explicitly (CanonicalJsonMode::JCS in
// original_source/crates/000-core/kotoba-cid/src/lib.rs). Go's
// encoding/json already sorts map keys and drops whitespace when
// encoding; what it does not give us is a stable tree we can walk to
// guarantee the same behavior for arbitrary Go values (not just
// map[string]any), so we round-trip through a generic tree first.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cid: marshal for canonicalization: %w", err)
	}
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("cid: decode for canonicalization: %w", err)
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		return encodeCanonicalNumber(buf, val)
	case string:
		enc, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(enc)
		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kEnc, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kEnc)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("cid: cannot canonicalize value of type %T", v)
	}
}

// encodeCanonicalNumber renders a json.Number in a stable form: integers
// without a leading '+' or redundant exponent, floats via Go's shortest
// round-trippable representation. This forbids the implicit numeric
// coercions (e.g. 1 vs 1.0) that would otherwise destabilize CIDs.
func encodeCanonicalNumber(buf *bytes.Buffer, n json.Number) error {
	if i, err := n.Int64(); err == nil {
		fmt.Fprintf(buf, "%d", i)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("cid: invalid number %q: %w", n, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("cid: non-finite number %q cannot be canonicalized", n)
	}
	// strconv.FormatFloat with -1 precision gives the shortest string
	// that round-trips back to f, which is what JCS numeric stability
	// requires in practice for float64 payloads.
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}
