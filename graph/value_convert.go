package graph

import (
	"github.com/forgedb/forgedb/cid"
	"github.com/forgedb/forgedb/dag"
)

// toDagValues converts an ergonomic map[string]any (the shape callers
// naturally reach for) into the dag.Value sum type the DAG payload
// actually stores. Unrecognized Go types are stored as Null rather
// than failing the whole record.
func toDagValues(m map[string]any) map[string]dag.Value {
	out := make(map[string]dag.Value, len(m))
	for k, v := range m {
		out[k] = toDagValue(v)
	}
	return out
}

func toDagValue(v any) dag.Value {
	switch val := v.(type) {
	case nil:
		return dag.NullValue()
	case bool:
		return dag.BoolValue(val)
	case int:
		return dag.IntValue(int64(val))
	case int64:
		return dag.IntValue(val)
	case float64:
		return dag.FloatValue(val)
	case string:
		return dag.StringValue(val)
	case cid.CID:
		return dag.LinkValue(val)
	case []any:
		arr := make([]dag.Value, len(val))
		for i, e := range val {
			arr[i] = toDagValue(e)
		}
		return dag.ArrayValue(arr)
	case map[string]any:
		return dag.MapValue(toDagValues(val))
	default:
		return dag.NullValue()
	}
}
