package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forgedb/forgedb/cid"
	"github.com/forgedb/forgedb/dag"
	"github.com/forgedb/forgedb/graph"
	"github.com/forgedb/forgedb/lsm"
	"github.com/forgedb/forgedb/mvcc"
	pkgconfig "github.com/forgedb/forgedb/pkg/config"
)

var (
	appLog    = logrus.New()
	appInit   bool
	appCfg    pkgconfig.Config
	kv        *lsm.Store
	dagStore  *dag.Store
	coord     *mvcc.Coordinator
	mgr       *graph.Manager
	dataDir   string
	configEnv string
)

var rootCmd = &cobra.Command{
	Use:              "forgedb",
	Short:            "Operate a forgedb graph store",
	PersistentPreRun: initMiddleware,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "store data directory, overrides config")
	rootCmd.PersistentFlags().StringVar(&configEnv, "env", "", "configuration environment to merge (FORGEDB_ENV)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(putNodeCmd)
	rootCmd.AddCommand(putEdgeCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(scanCmd)
}

// initMiddleware opens the store layers exactly once per process, the same
// PersistentPreRun-guarded singleton shape as the teacher's
// initIPFSMiddleware.
func initMiddleware(cmd *cobra.Command, _ []string) {
	if appInit {
		return
	}
	_ = godotenv.Load()

	env := configEnv
	if env == "" {
		env = os.Getenv("FORGEDB_ENV")
	}
	loaded, err := pkgconfig.Load(env)
	if err != nil {
		appCfg = pkgconfig.Config{}
		appCfg.Storage.DataDir = "./data"
		appCfg.Storage.HashAlgorithm = "sha2-256"
	} else {
		appCfg = *loaded
	}
	if dataDir != "" {
		appCfg.Storage.DataDir = dataDir
	}

	algo, err := cid.ParseAlgorithm(appCfg.Storage.HashAlgorithm)
	if err != nil {
		panic(err)
	}

	kv, err = lsm.Open(lsm.Config{
		Dir:                   appCfg.Storage.DataDir,
		FlushThresholdBytes:   appCfg.Storage.MemtableFlushThresholdBytes,
		CompactionPolicy:      parseCompactionPolicy(appCfg.Storage.CompactionPolicy),
		WALSyncMode:           parseWALSyncMode(appCfg.Storage.WALSyncMode),
		TombstoneGraceSeconds: appCfg.Storage.CompactionTombstoneGraceSeconds,
		Logger:                appLog,
	})
	if err != nil {
		panic(err)
	}

	dagStore, err = dag.Open(dag.Config{KV: kv, Algorithm: algo, CacheSize: appCfg.DAG.BlockCacheSize})
	if err != nil {
		panic(err)
	}

	coord, err = mvcc.New(mvcc.Config{KV: kv, SnapshotCacheCapacity: appCfg.MVCC.SnapshotCacheCapacity, Logger: appLog})
	if err != nil {
		panic(err)
	}

	mgr, err = graph.New(graph.Config{DAG: dagStore, KV: kv, Coord: coord, Logger: appLog})
	if err != nil {
		panic(err)
	}

	appInit = true
}

func parseCompactionPolicy(s string) lsm.CompactionPolicy {
	if s == "manual" {
		return lsm.Manual
	}
	return lsm.SizeTiered
}

func parseWALSyncMode(s string) lsm.WALSyncMode {
	switch s {
	case "per_commit":
		return lsm.SyncPerCommit
	case "group_commit":
		return lsm.SyncGroupCommit
	default:
		return lsm.SyncPerWrite
	}
}

// parsePropertyFlags parses "key=value" pairs into a property map; values
// that parse as int64 or float64 are stored typed, everything else as a
// string (put-node/put-edge's --prop flag).
func parsePropertyFlags(pairs []string) map[string]any {
	props := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			props[key] = n
			continue
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			props[key] = f
			continue
		}
		props[key] = value
	}
	return props
}
