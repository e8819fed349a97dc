package graph

import (
	"context"

	"gopkg.in/yaml.v3"

	"github.com/forgedb/forgedb/cid"
	"github.com/forgedb/forgedb/forgeerr"
)

// ForeignNode is a node from an externally-sourced graph representation,
// keyed by an arbitrary caller-assigned ID (not yet a CID).
type ForeignNode struct {
	ID         string         `yaml:"id"`
	Labels     []string       `yaml:"labels"`
	Properties map[string]any `yaml:"properties"`
	Kind       string         `yaml:"kind"`
}

// ForeignEdge references ForeignNode IDs rather than CIDs.
type ForeignEdge struct {
	Source     string         `yaml:"source"`
	Target     string         `yaml:"target"`
	Label      string         `yaml:"label"`
	Properties map[string]any `yaml:"properties"`
}

// ForeignGraph is a bulk import unit: nodes by foreign ID plus edges
// referencing those IDs.
type ForeignGraph struct {
	Nodes []ForeignNode `yaml:"nodes"`
	Edges []ForeignEdge `yaml:"edges"`
}

// DecodeForeignGraphYAML parses a YAML-formatted bulk import document,
// the same yaml.Unmarshal-into-a-tagged-struct idiom the teacher's
// devnet bootstrap command uses for its node list.
func DecodeForeignGraphYAML(data []byte) (ForeignGraph, error) {
	var foreign ForeignGraph
	if err := yaml.Unmarshal(data, &foreign); err != nil {
		return ForeignGraph{}, forgeerr.Wrap(forgeerr.Validation, "graph: decode foreign graph yaml", err)
	}
	return foreign, nil
}

// ImportGraph inserts every node, then every edge, translating foreign
// IDs to the CIDs CreateNode assigns. This is best-effort: a failure
// partway through leaves already-created nodes/edges in place rather
// than rolling back, since the underlying dag/lsm layers have no
// multi-block transaction boundary to roll back to. ImportGraph is
// therefore not all-or-nothing; it inserts one node/edge at a time
// through CreateNode/CreateEdge.
func (m *Manager) ImportGraph(ctx context.Context, foreign ForeignGraph) error {
	ids := make(map[string]cid.CID, len(foreign.Nodes))
	for _, n := range foreign.Nodes {
		c, err := m.CreateNode(ctx, n.Labels, n.Properties, n.Kind)
		if err != nil {
			return err
		}
		ids[n.ID] = c
	}
	for _, e := range foreign.Edges {
		source, ok := ids[e.Source]
		if !ok {
			return missingForeignNode(e.Source)
		}
		target, ok := ids[e.Target]
		if !ok {
			return missingForeignNode(e.Target)
		}
		if _, err := m.CreateEdge(ctx, source, target, e.Label, e.Properties); err != nil {
			return err
		}
	}
	return nil
}

func missingForeignNode(id string) error {
	return forgeerr.New(forgeerr.Validation, "graph: import_graph: edge references unknown foreign node "+id)
}
