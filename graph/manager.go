package graph

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/forgedb/forgedb/cid"
	"github.com/forgedb/forgedb/dag"
	"github.com/forgedb/forgedb/forgeerr"
	"github.com/forgedb/forgedb/lsm"
	"github.com/forgedb/forgedb/mvcc"
)

// Config configures a Manager.
type Config struct {
	DAG    *dag.Store
	KV     *lsm.Store
	Coord  *mvcc.Coordinator
	Logger *logrus.Logger
}

// Manager is the Graph Version Manager (spec.md §4.5): create_node/
// create_edge over the DAG, branch pointers gated by the mvcc
// coordinator's optimistic commit validation, and commit/merge/history
// over the resulting commit chain.
type Manager struct {
	dag    *dag.Store
	kv     *lsm.Store
	coord  *mvcc.Coordinator
	logger *logrus.Logger

	// pending tracks block CIDs created since the last commit on the
	// checked-out branch — the minimal "add set" a commit's
	// TransactionRecord captures (spec.md §3).
	mu            sync.Mutex
	pending       []cid.CID
	currentBranch string
	// currentCommit is the detached commit a restore_snapshot(commit or
	// snapshot label) landed on; valid only while currentBranch == "".
	// Zero means no commits are reachable yet.
	currentCommit cid.CID

	nextAlias atomic.Uint64
}

// New constructs a Manager over already-open dag/lsm/mvcc layers.
func New(cfg Config) (*Manager, error) {
	if cfg.DAG == nil || cfg.KV == nil || cfg.Coord == nil {
		return nil, forgeerr.New(forgeerr.Validation, "graph: DAG, KV, and Coord are all required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		dag:    cfg.DAG,
		kv:     cfg.KV,
		coord:  cfg.Coord,
		logger: logger,
	}, nil
}

func (m *Manager) trackPending(c cid.CID) {
	m.mu.Lock()
	m.pending = append(m.pending, c)
	m.mu.Unlock()
}

func (m *Manager) takePending() []cid.CID {
	m.mu.Lock()
	defer m.mu.Unlock()
	taken := m.pending
	m.pending = nil
	return taken
}

func classifyCtxErr(err error) error {
	if err == context.Canceled {
		return forgeerr.Wrap(forgeerr.Cancelled, "graph: operation cancelled", err)
	}
	return forgeerr.Wrap(forgeerr.TimedOut, "graph: deadline exceeded", err)
}
