package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	putNodeLabels string
	putNodeKind   string
	putNodeProps  []string
)

var putNodeCmd = &cobra.Command{
	Use:   "put-node",
	Short: "Create a node and print its CID",
	Run:   putNodeHandler,
}

func init() {
	putNodeCmd.Flags().StringVar(&putNodeLabels, "labels", "", "comma-separated labels")
	putNodeCmd.Flags().StringVar(&putNodeKind, "kind", "", "node kind tag")
	putNodeCmd.Flags().StringArrayVar(&putNodeProps, "prop", nil, "key=value property, repeatable")
}

func putNodeHandler(cmd *cobra.Command, args []string) {
	var labels []string
	if putNodeLabels != "" {
		labels = strings.Split(putNodeLabels, ",")
	}
	c, err := mgr.CreateNode(context.Background(), labels, parsePropertyFlags(putNodeProps), putNodeKind)
	if err != nil {
		panic(err)
	}
	fmt.Println(c)
}
