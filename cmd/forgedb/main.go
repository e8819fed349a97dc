// Command forgedb is a thin operational CLI over the cid/dag/lsm/mvcc/graph
// packages: open a store, write nodes and edges, commit a branch, and
// inspect history or run an integrity check.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
