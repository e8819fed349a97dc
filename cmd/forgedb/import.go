package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgedb/forgedb/graph"
)

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Bulk-load nodes and edges from a YAML foreign graph document",
	Args:  cobra.ExactArgs(1),
	Run:   importHandler,
}

func importHandler(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		panic(err)
	}
	foreign, err := graph.DecodeForeignGraphYAML(data)
	if err != nil {
		panic(err)
	}
	if err := mgr.ImportGraph(context.Background(), foreign); err != nil {
		panic(err)
	}
	fmt.Printf("imported %d nodes, %d edges\n", len(foreign.Nodes), len(foreign.Edges))
}
