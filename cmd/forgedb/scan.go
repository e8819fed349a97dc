package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <kind>",
	Short: "List every node of a kind visible in the current working state",
	Args:  cobra.ExactArgs(1),
	Run:   scanHandler,
}

func scanHandler(cmd *cobra.Command, args []string) {
	found, err := mgr.ScanNodesByKind(context.Background(), args[0])
	if err != nil {
		panic(err)
	}
	for _, fn := range found {
		fmt.Println(fn.CID)
	}
}
