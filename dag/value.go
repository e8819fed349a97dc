// Package dag implements the content-addressed Merkle DAG block store:
// blocks keyed by the hash of their own payload and children, node and
// edge records encoded as blocks, and integrity/diff operations over
// the resulting graph.
package dag

import (
	"encoding/json"
	"fmt"

	"github.com/forgedb/forgedb/cid"
)

// ValueKind tags the variant held by a Value.
type ValueKind string

const (
	ValueNull    ValueKind = "null"
	ValueBool    ValueKind = "bool"
	ValueInt64   ValueKind = "int"
	ValueFloat64 ValueKind = "float"
	ValueString  ValueKind = "string"
	ValueArray   ValueKind = "array"
	ValueMap     ValueKind = "map"
	ValueLink    ValueKind = "link"
)

// Value is the property sum type: Null | Bool | Int64 | Float64 |
// String | Array | Map | Link(CID), the graph model's one concession
// to dynamic typing (spec.md §3). Only the field matching Kind is
// meaningful. Value marshals to a tagged JSON object so it round-trips
// through the same canonical encoding path as any other payload
// (cid.Canonicalize), and so decoding a stored record recovers the
// original variant rather than guessing from a bare JSON number/string.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Arr   []Value
	Map   map[string]Value
	Link  cid.CID
}

func NullValue() Value                  { return Value{Kind: ValueNull} }
func BoolValue(b bool) Value             { return Value{Kind: ValueBool, Bool: b} }
func IntValue(i int64) Value             { return Value{Kind: ValueInt64, Int: i} }
func FloatValue(f float64) Value         { return Value{Kind: ValueFloat64, Float: f} }
func StringValue(s string) Value         { return Value{Kind: ValueString, Str: s} }
func ArrayValue(v []Value) Value         { return Value{Kind: ValueArray, Arr: v} }
func MapValue(m map[string]Value) Value  { return Value{Kind: ValueMap, Map: m} }
func LinkValue(c cid.CID) Value          { return Value{Kind: ValueLink, Link: c} }

type taggedValue struct {
	Kind  ValueKind        `json:"k"`
	Bool  *bool            `json:"b,omitempty"`
	Int   *int64           `json:"i,omitempty"`
	Float *float64         `json:"f,omitempty"`
	Str   *string          `json:"s,omitempty"`
	Arr   []Value          `json:"a,omitempty"`
	Map   map[string]Value `json:"m,omitempty"`
	Link  *cid.CID         `json:"l,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	t := taggedValue{Kind: v.Kind}
	switch v.Kind {
	case ValueNull:
	case ValueBool:
		t.Bool = &v.Bool
	case ValueInt64:
		t.Int = &v.Int
	case ValueFloat64:
		t.Float = &v.Float
	case ValueString:
		t.Str = &v.Str
	case ValueArray:
		t.Arr = v.Arr
	case ValueMap:
		t.Map = v.Map
	case ValueLink:
		t.Link = &v.Link
	default:
		return nil, fmt.Errorf("dag: unknown value kind %q", v.Kind)
	}
	return json.Marshal(t)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var t taggedValue
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	v.Kind = t.Kind
	switch t.Kind {
	case ValueNull:
	case ValueBool:
		if t.Bool != nil {
			v.Bool = *t.Bool
		}
	case ValueInt64:
		if t.Int != nil {
			v.Int = *t.Int
		}
	case ValueFloat64:
		if t.Float != nil {
			v.Float = *t.Float
		}
	case ValueString:
		if t.Str != nil {
			v.Str = *t.Str
		}
	case ValueArray:
		v.Arr = t.Arr
	case ValueMap:
		v.Map = t.Map
	case ValueLink:
		if t.Link != nil {
			v.Link = *t.Link
		}
	default:
		return fmt.Errorf("dag: unknown value kind %q", t.Kind)
	}
	return nil
}
