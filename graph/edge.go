package graph

import (
	"context"
	"strings"

	"github.com/forgedb/forgedb/cid"
	"github.com/forgedb/forgedb/forgeerr"
)

// CreateEdge builds and stores an Edge record, failing if either
// endpoint CID is absent (spec.md §4.5 failure semantics), and
// maintains the adjacency index keyed by (source alias, label, target
// alias).
func (m *Manager) CreateEdge(ctx context.Context, source, target cid.CID, label string, properties map[string]any) (cid.CID, error) {
	if strings.Contains(label, ":") {
		return cid.CID{}, forgeerr.New(forgeerr.Validation, "graph: edge label must not contain ':'")
	}
	if _, err := m.requireNode(ctx, source); err != nil {
		return cid.CID{}, reclassifyMissing(err, "graph: create_edge source")
	}
	if _, err := m.requireNode(ctx, target); err != nil {
		return cid.CID{}, reclassifyMissing(err, "graph: create_edge target")
	}

	rec := EdgeRecord{Source: source, Target: target, Label: label, Properties: toDagValues(properties)}
	payload, err := canonicalPayload(rec)
	if err != nil {
		return cid.CID{}, err
	}
	c, err := m.dag.Put(ctx, payload, []cid.CID{source, target})
	if err != nil {
		return cid.CID{}, err
	}

	srcAlias, err := m.aliasFor(ctx, source)
	if err != nil {
		return cid.CID{}, err
	}
	tgtAlias, err := m.aliasFor(ctx, target)
	if err != nil {
		return cid.CID{}, err
	}
	if err := m.kv.Put(ctx, edgeKey(srcAlias, label, tgtAlias), c[:]); err != nil {
		return cid.CID{}, err
	}

	m.trackPending(c)
	return c, nil
}

// GetEdge returns the edge stored at c, or nil if absent.
func (m *Manager) GetEdge(ctx context.Context, c cid.CID) (*EdgeRecord, error) {
	block, err := m.dag.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}
	rec, err := decodeEdge(block)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FoundEdge pairs an edge's CID with its decoded record, the shape
// FindEdges returns (spec.md §4.5's "sequence of (CID, Edge)").
type FoundEdge struct {
	CID  cid.CID
	Edge EdgeRecord
}

// FindEdges scans the adjacency index and returns every edge for which
// predicate returns true. The adjacency key alone carries the source
// alias, label, and target alias; the edge's CID is stored as the
// index value (spec.md §6 describes the key as carrying the tuple —
// this implementation additionally stores the edge CID as the value so
// find_edges can decode full Edge properties for predicate evaluation,
// which a value-less marker could not support).
func (m *Manager) FindEdges(ctx context.Context, predicate func(FoundEdge) bool) ([]FoundEdge, error) {
	kvs, err := m.kv.Scan(ctx, []byte(edgePrefix))
	if err != nil {
		return nil, err
	}
	var found []FoundEdge
	for _, kv := range kvs {
		if len(kv.Value) != cid.Size {
			continue
		}
		var edgeCID cid.CID
		copy(edgeCID[:], kv.Value)
		edge, err := m.GetEdge(ctx, edgeCID)
		if err != nil {
			return nil, err
		}
		if edge == nil {
			continue
		}
		fe := FoundEdge{CID: edgeCID, Edge: *edge}
		if predicate == nil || predicate(fe) {
			found = append(found, fe)
		}
	}
	return found, nil
}

func reclassifyMissing(err error, msg string) error {
	if err == nil {
		return nil
	}
	return forgeerr.Wrap(forgeerr.MissingReference, msg, err)
}
