package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgedb/forgedb/cid"
)

var (
	putEdgeSource string
	putEdgeTarget string
	putEdgeLabel  string
	putEdgeProps  []string
)

var putEdgeCmd = &cobra.Command{
	Use:   "put-edge",
	Short: "Create an edge between two existing nodes and print its CID",
	Run:   putEdgeHandler,
}

func init() {
	putEdgeCmd.Flags().StringVar(&putEdgeSource, "source", "", "source node CID [required]")
	putEdgeCmd.Flags().StringVar(&putEdgeTarget, "target", "", "target node CID [required]")
	putEdgeCmd.Flags().StringVar(&putEdgeLabel, "label", "", "edge label [required]")
	putEdgeCmd.Flags().StringArrayVar(&putEdgeProps, "prop", nil, "key=value property, repeatable")
}

func putEdgeHandler(cmd *cobra.Command, args []string) {
	if putEdgeSource == "" || putEdgeTarget == "" || putEdgeLabel == "" {
		_ = cmd.Usage()
		panic("--source, --target, and --label are required")
	}
	source, err := cid.ParseCID(putEdgeSource)
	if err != nil {
		panic(err)
	}
	target, err := cid.ParseCID(putEdgeTarget)
	if err != nil {
		panic(err)
	}
	c, err := mgr.CreateEdge(context.Background(), source, target, putEdgeLabel, parsePropertyFlags(putEdgeProps))
	if err != nil {
		panic(err)
	}
	fmt.Println(c)
}
