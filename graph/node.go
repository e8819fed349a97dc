package graph

import (
	"context"

	"github.com/forgedb/forgedb/cid"
	"github.com/forgedb/forgedb/forgeerr"
)

// CreateNode builds a Node record, stores it via the Merkle DAG, and
// returns its CID (spec.md §4.5).
func (m *Manager) CreateNode(ctx context.Context, labels []string, properties map[string]any, kind string) (cid.CID, error) {
	rec := NodeRecord{Labels: labels, Properties: toDagValues(properties), Kind: kind}
	payload, err := canonicalPayload(rec)
	if err != nil {
		return cid.CID{}, err
	}
	c, err := m.dag.Put(ctx, payload, nil)
	if err != nil {
		return cid.CID{}, err
	}
	if _, err := m.aliasFor(ctx, c); err != nil {
		return cid.CID{}, err
	}
	m.trackPending(c)
	return c, nil
}

// GetNode returns the node stored at c, or nil if absent.
func (m *Manager) GetNode(ctx context.Context, c cid.CID) (*NodeRecord, error) {
	block, err := m.dag.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}
	rec, err := decodeNode(block)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// requireNode fetches a node and fails with NotFound if absent, used
// where the caller requires presence (spec.md §7).
func (m *Manager) requireNode(ctx context.Context, c cid.CID) (*NodeRecord, error) {
	rec, err := m.GetNode(ctx, c)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, forgeerr.New(forgeerr.NotFound, "graph: node "+c.String()+" not found")
	}
	return rec, nil
}
