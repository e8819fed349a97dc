package graph

import (
	"context"
	"testing"

	"github.com/forgedb/forgedb/cid"
	"github.com/forgedb/forgedb/dag"
	"github.com/forgedb/forgedb/lsm"
	"github.com/forgedb/forgedb/mvcc"
)

func tmpManager(t *testing.T) *Manager {
	t.Helper()
	kv, err := lsm.Open(lsm.Config{Dir: t.TempDir(), CompactionPolicy: lsm.Manual})
	if err != nil {
		t.Fatalf("lsm.Open: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	d, err := dag.Open(dag.Config{KV: kv, Algorithm: cid.AlgoSHA256})
	if err != nil {
		t.Fatalf("dag.Open: %v", err)
	}
	coord, err := mvcc.New(mvcc.Config{KV: kv})
	if err != nil {
		t.Fatalf("mvcc.New: %v", err)
	}
	m, err := New(Config{DAG: d, KV: kv, Coord: coord})
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	return m
}

func TestCreateNodeAndGetNode(t *testing.T) {
	m := tmpManager(t)
	ctx := context.Background()
	c, err := m.CreateNode(ctx, []string{"Person"}, map[string]any{"name": "ada"}, "person")
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	node, err := m.GetNode(ctx, c)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if node == nil || node.Kind != "person" || node.Properties["name"].Str != "ada" {
		t.Fatalf("unexpected node: %+v", node)
	}
}

func TestGetNodeMissingReturnsNilNotError(t *testing.T) {
	m := tmpManager(t)
	var absent cid.CID
	absent[0] = 1
	node, err := m.GetNode(context.Background(), absent)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if node != nil {
		t.Fatalf("expected nil node for absent CID, got %+v", node)
	}
}

func TestCreateEdgeRejectsMissingEndpoint(t *testing.T) {
	m := tmpManager(t)
	ctx := context.Background()
	source, err := m.CreateNode(ctx, nil, nil, "n")
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	var ghost cid.CID
	ghost[0] = 0xAB
	if _, err := m.CreateEdge(ctx, source, ghost, "knows", nil); err == nil {
		t.Fatalf("expected error for edge to absent target")
	}
}

func TestCreateEdgeRejectsColonInLabel(t *testing.T) {
	m := tmpManager(t)
	ctx := context.Background()
	a, _ := m.CreateNode(ctx, nil, nil, "n")
	b, _ := m.CreateNode(ctx, nil, nil, "n")
	if _, err := m.CreateEdge(ctx, a, b, "has:knows", nil); err == nil {
		t.Fatalf("expected error for label containing ':'")
	}
}

func TestFindEdgesFiltersByPredicate(t *testing.T) {
	m := tmpManager(t)
	ctx := context.Background()
	a, _ := m.CreateNode(ctx, nil, nil, "n")
	b, _ := m.CreateNode(ctx, nil, nil, "n")
	c, _ := m.CreateNode(ctx, nil, nil, "n")
	if _, err := m.CreateEdge(ctx, a, b, "knows", nil); err != nil {
		t.Fatalf("CreateEdge a-b: %v", err)
	}
	if _, err := m.CreateEdge(ctx, a, c, "blocks", nil); err != nil {
		t.Fatalf("CreateEdge a-c: %v", err)
	}
	found, err := m.FindEdges(ctx, func(fe FoundEdge) bool { return fe.Edge.Label == "knows" })
	if err != nil {
		t.Fatalf("FindEdges: %v", err)
	}
	if len(found) != 1 || found[0].Edge.Label != "knows" {
		t.Fatalf("expected exactly one 'knows' edge, got %+v", found)
	}
}

func TestBranchCreateCheckoutList(t *testing.T) {
	m := tmpManager(t)
	ctx := context.Background()
	if err := m.CreateBranch(ctx, "main", cid.CID{}); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := m.CreateBranch(ctx, "main", cid.CID{}); err == nil {
		t.Fatalf("expected error creating duplicate branch")
	}
	if err := m.CheckoutBranch(ctx, "main"); err != nil {
		t.Fatalf("CheckoutBranch: %v", err)
	}
	if m.CurrentBranch() != "main" {
		t.Fatalf("expected current branch 'main', got %q", m.CurrentBranch())
	}
	if err := m.CheckoutBranch(ctx, "missing"); err == nil {
		t.Fatalf("expected error checking out nonexistent branch")
	}
	names, err := m.ListBranches(ctx)
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if len(names) != 1 || names[0] != "main" {
		t.Fatalf("expected [main], got %v", names)
	}
}

func TestCommitAdvancesBranchHeadAndRecordsHistory(t *testing.T) {
	m := tmpManager(t)
	ctx := context.Background()
	if err := m.CreateBranch(ctx, "main", cid.CID{}); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := m.CheckoutBranch(ctx, "main"); err != nil {
		t.Fatalf("CheckoutBranch: %v", err)
	}
	node, err := m.CreateNode(ctx, []string{"Person"}, map[string]any{"name": "ada"}, "person")
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	commit1, err := m.Commit(ctx, "main", "tester", "add ada")
	if err != nil {
		t.Fatalf("Commit 1: %v", err)
	}
	if commit1.IsZero() {
		t.Fatalf("expected non-zero commit CID")
	}

	_, err = m.CreateNode(ctx, []string{"Person"}, map[string]any{"name": "grace"}, "person")
	if err != nil {
		t.Fatalf("CreateNode 2: %v", err)
	}
	commit2, err := m.Commit(ctx, "main", "tester", "add grace")
	if err != nil {
		t.Fatalf("Commit 2: %v", err)
	}

	chain, err := m.GetBranchCommits(ctx, "main")
	if err != nil {
		t.Fatalf("GetBranchCommits: %v", err)
	}
	if len(chain) != 2 || chain[0] != commit2 || chain[1] != commit1 {
		t.Fatalf("expected newest-first [commit2, commit1], got %v", chain)
	}

	history, err := m.GetHistory(ctx, node)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 1 || history[0].CommitCID != commit1 {
		t.Fatalf("expected one history entry at commit1, got %+v", history)
	}
}

func TestCommitDetectsBranchPointerConflict(t *testing.T) {
	m := tmpManager(t)
	ctx := context.Background()
	if err := m.CreateBranch(ctx, "main", cid.CID{}); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := m.CheckoutBranch(ctx, "main"); err != nil {
		t.Fatalf("CheckoutBranch: %v", err)
	}

	// Begin a transaction that observes "main"'s head the same way
	// Commit does (a tx.Get registers the read), before a second,
	// real Commit lands and advances the pointer past it.
	rogue := m.coord.Begin(ctx)
	if _, err := rogue.Get(ctx, branchKey("main")); err != nil {
		t.Fatalf("rogue tx Get: %v", err)
	}

	if _, err := m.CreateNode(ctx, nil, nil, "n"); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if _, err := m.Commit(ctx, "main", "tester", "first"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// The rogue transaction's snapshot predates that commit; attempting
	// to advance the same key it read must now raise Conflict — the
	// exact mechanism Manager.Commit relies on when two commits race on
	// one branch (spec.md §5, §9(c)).
	rogue.Put(branchKey("main"), make([]byte, cid.Size))
	if _, err := m.coord.Commit(ctx, rogue); err == nil {
		t.Fatalf("expected conflict error for a transaction that read a since-advanced branch pointer")
	}
}

func TestCreateSnapshotAndScanNodesByKindTimeTravel(t *testing.T) {
	m := tmpManager(t)
	ctx := context.Background()
	if err := m.CreateBranch(ctx, "main", cid.CID{}); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := m.CheckoutBranch(ctx, "main"); err != nil {
		t.Fatalf("CheckoutBranch: %v", err)
	}

	if _, err := m.CreateSnapshot(ctx, "s0"); err != nil {
		t.Fatalf("CreateSnapshot s0: %v", err)
	}

	n1, err := m.CreateNode(ctx, nil, map[string]any{"name": "n1"}, "person")
	if err != nil {
		t.Fatalf("CreateNode n1: %v", err)
	}
	if _, err := m.Commit(ctx, "main", "tester", "add n1"); err != nil {
		t.Fatalf("Commit n1: %v", err)
	}

	if _, err := m.CreateSnapshot(ctx, "s1"); err != nil {
		t.Fatalf("CreateSnapshot s1: %v", err)
	}

	n2, err := m.CreateNode(ctx, nil, map[string]any{"name": "n2"}, "person")
	if err != nil {
		t.Fatalf("CreateNode n2: %v", err)
	}
	if _, err := m.Commit(ctx, "main", "tester", "add n2"); err != nil {
		t.Fatalf("Commit n2: %v", err)
	}

	if err := m.RestoreSnapshot(ctx, "s0"); err != nil {
		t.Fatalf("RestoreSnapshot s0: %v", err)
	}
	found, err := m.ScanNodesByKind(ctx, "person")
	if err != nil {
		t.Fatalf("ScanNodesByKind at s0: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected no person nodes visible at s0, got %+v", found)
	}

	if err := m.RestoreSnapshot(ctx, "s1"); err != nil {
		t.Fatalf("RestoreSnapshot s1: %v", err)
	}
	found, err = m.ScanNodesByKind(ctx, "person")
	if err != nil {
		t.Fatalf("ScanNodesByKind at s1: %v", err)
	}
	if len(found) != 1 || found[0].CID != n1 {
		t.Fatalf("expected only n1 visible at s1, got %+v", found)
	}

	if err := m.CheckoutBranch(ctx, "main"); err != nil {
		t.Fatalf("CheckoutBranch main: %v", err)
	}
	found, err = m.ScanNodesByKind(ctx, "person")
	if err != nil {
		t.Fatalf("ScanNodesByKind at HEAD: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected both n1 and n2 visible at HEAD, got %+v", found)
	}
	seen := map[cid.CID]bool{}
	for _, fn := range found {
		seen[fn.CID] = true
	}
	if !seen[n1] || !seen[n2] {
		t.Fatalf("expected n1 and n2 both present, got %+v", found)
	}
}

func TestImportGraphInsertsNodesThenEdges(t *testing.T) {
	m := tmpManager(t)
	ctx := context.Background()
	foreign := ForeignGraph{
		Nodes: []ForeignNode{
			{ID: "a", Labels: []string{"Person"}, Kind: "person"},
			{ID: "b", Labels: []string{"Person"}, Kind: "person"},
		},
		Edges: []ForeignEdge{
			{Source: "a", Target: "b", Label: "knows"},
		},
	}
	if err := m.ImportGraph(ctx, foreign); err != nil {
		t.Fatalf("ImportGraph: %v", err)
	}
	found, err := m.FindEdges(ctx, nil)
	if err != nil {
		t.Fatalf("FindEdges: %v", err)
	}
	if len(found) != 1 || found[0].Edge.Label != "knows" {
		t.Fatalf("expected one imported 'knows' edge, got %+v", found)
	}
}

func TestImportGraphRejectsUnknownForeignID(t *testing.T) {
	m := tmpManager(t)
	ctx := context.Background()
	foreign := ForeignGraph{
		Nodes: []ForeignNode{{ID: "a", Kind: "n"}},
		Edges: []ForeignEdge{{Source: "a", Target: "ghost", Label: "knows"}},
	}
	if err := m.ImportGraph(ctx, foreign); err == nil {
		t.Fatalf("expected error for edge referencing unknown foreign node")
	}
}

func TestRestoreSnapshotHEADClearsPendingOnly(t *testing.T) {
	m := tmpManager(t)
	ctx := context.Background()
	if err := m.CreateBranch(ctx, "main", cid.CID{}); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := m.CheckoutBranch(ctx, "main"); err != nil {
		t.Fatalf("CheckoutBranch: %v", err)
	}
	if _, err := m.CreateNode(ctx, nil, nil, "n"); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := m.RestoreSnapshot(ctx, "HEAD"); err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}
	if m.CurrentBranch() != "main" {
		t.Fatalf("expected HEAD restore to keep current branch, got %q", m.CurrentBranch())
	}
	if len(m.takePending()) != 0 {
		t.Fatalf("expected pending set cleared by RestoreSnapshot HEAD")
	}
}

func TestRestoreSnapshotSwitchesToNamedBranch(t *testing.T) {
	m := tmpManager(t)
	ctx := context.Background()
	if err := m.CreateBranch(ctx, "main", cid.CID{}); err != nil {
		t.Fatalf("CreateBranch main: %v", err)
	}
	if err := m.CreateBranch(ctx, "dev", cid.CID{}); err != nil {
		t.Fatalf("CreateBranch dev: %v", err)
	}
	if err := m.CheckoutBranch(ctx, "main"); err != nil {
		t.Fatalf("CheckoutBranch: %v", err)
	}
	if err := m.RestoreSnapshot(ctx, "dev"); err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}
	if m.CurrentBranch() != "dev" {
		t.Fatalf("expected current branch 'dev', got %q", m.CurrentBranch())
	}
}
