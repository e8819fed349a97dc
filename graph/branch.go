package graph

import (
	"context"
	"strings"

	"github.com/forgedb/forgedb/cid"
	"github.com/forgedb/forgedb/forgeerr"
)

// CreateBranch names fromCommit (the zero CID for a not-yet-committed
// branch) as name's head. No data is copied — a branch is a name plus
// a commit CID (spec.md §4.5).
func (m *Manager) CreateBranch(ctx context.Context, name string, fromCommit cid.CID) error {
	if name == "" {
		return forgeerr.New(forgeerr.Validation, "graph: branch name must not be empty")
	}
	existing, err := m.kv.Get(ctx, branchKey(name))
	if err != nil {
		return err
	}
	if existing != nil {
		return forgeerr.New(forgeerr.Validation, "graph: branch "+name+" already exists")
	}
	if !fromCommit.IsZero() {
		present, err := m.commitExists(ctx, fromCommit)
		if err != nil {
			return err
		}
		if !present {
			return forgeerr.New(forgeerr.MissingReference, "graph: create_branch: commit "+fromCommit.String()+" not found")
		}
	}
	return m.kv.Put(ctx, branchKey(name), fromCommit[:])
}

// CheckoutBranch switches the manager's working state to name (pure
// pointer manipulation; no data is copied).
func (m *Manager) CheckoutBranch(ctx context.Context, name string) error {
	existing, err := m.kv.Get(ctx, branchKey(name))
	if err != nil {
		return err
	}
	if existing == nil {
		return forgeerr.New(forgeerr.NotFound, "graph: branch "+name+" not found")
	}
	m.mu.Lock()
	m.currentBranch = name
	m.pending = nil
	m.mu.Unlock()
	return nil
}

// CurrentBranch returns the checked-out branch name, or "" if detached.
func (m *Manager) CurrentBranch() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentBranch
}

// ListBranches returns every branch name.
func (m *Manager) ListBranches(ctx context.Context) ([]string, error) {
	kvs, err := m.kv.Scan(ctx, []byte(branchPrefix))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		names = append(names, strings.TrimPrefix(string(kv.Key), branchPrefix))
	}
	return names, nil
}

// headOf returns name's current head commit CID (the zero CID if the
// branch has no commits yet).
func (m *Manager) headOf(ctx context.Context, name string) (cid.CID, error) {
	data, err := m.kv.Get(ctx, branchKey(name))
	if err != nil {
		return cid.CID{}, err
	}
	if data == nil {
		return cid.CID{}, forgeerr.New(forgeerr.NotFound, "graph: branch "+name+" not found")
	}
	var c cid.CID
	copy(c[:], data)
	return c, nil
}

func (m *Manager) commitExists(ctx context.Context, c cid.CID) (bool, error) {
	data, err := m.kv.Get(ctx, commitKey(c))
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

// GetBranchCommits walks name's commit chain from the head backward via
// primary parents, returning CIDs newest-first.
func (m *Manager) GetBranchCommits(ctx context.Context, name string) ([]cid.CID, error) {
	head, err := m.headOf(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.walkPrimaryChain(ctx, head)
}

func (m *Manager) walkPrimaryChain(ctx context.Context, head cid.CID) ([]cid.CID, error) {
	var chain []cid.CID
	cur := head
	for !cur.IsZero() {
		if err := ctx.Err(); err != nil {
			return nil, classifyCtxErr(err)
		}
		chain = append(chain, cur)
		block, err := m.dag.Get(ctx, cur)
		if err != nil {
			return nil, err
		}
		if block == nil {
			return nil, forgeerr.New(forgeerr.Corrupt, "graph: commit "+cur.String()+" missing from DAG")
		}
		commit, err := decodeCommit(block)
		if err != nil {
			return nil, err
		}
		if len(commit.Parents) == 0 {
			break
		}
		cur = commit.Parents[0]
	}
	return chain, nil
}
