package graph

import (
	"context"
	"encoding/binary"

	"github.com/forgedb/forgedb/cid"
	"github.com/forgedb/forgedb/forgeerr"
)

// aliasFor returns c's existing vertex alias if one has already been
// assigned, allocating and persisting a new monotonic alias otherwise.
// Aliases are persisted bidirectionally under vertex:/cid_to_vertex:
// (spec.md §6), the CID remaining the source of truth.
func (m *Manager) aliasFor(ctx context.Context, c cid.CID) (uint64, error) {
	existing, err := m.kv.Get(ctx, cidToVertexKey(c))
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return binary.BigEndian.Uint64(existing), nil
	}

	alias := m.nextAlias.Add(1)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, alias)
	if err := m.kv.Put(ctx, cidToVertexKey(c), buf); err != nil {
		return 0, err
	}
	if err := m.kv.Put(ctx, vertexKey(alias), c[:]); err != nil {
		return 0, err
	}
	return alias, nil
}

// cidForAlias resolves a vertex alias back to its CID.
func (m *Manager) cidForAlias(ctx context.Context, alias uint64) (cid.CID, error) {
	data, err := m.kv.Get(ctx, vertexKey(alias))
	if err != nil {
		return cid.CID{}, err
	}
	if data == nil || len(data) != cid.Size {
		return cid.CID{}, forgeerr.New(forgeerr.NotFound, "graph: no vertex for alias")
	}
	var c cid.CID
	copy(c[:], data)
	return c, nil
}
