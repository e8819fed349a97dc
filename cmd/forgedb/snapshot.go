package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <label>",
	Short: "Label the current working state as a restore point",
	Args:  cobra.ExactArgs(1),
	Run:   snapshotHandler,
}

var (
	restoreCmd = &cobra.Command{
		Use:   "restore <identifier>",
		Short: "Restore working state to a branch, snapshot label, commit CID, or HEAD",
		Args:  cobra.ExactArgs(1),
		Run:   restoreHandler,
	}
)

func snapshotHandler(cmd *cobra.Command, args []string) {
	if _, err := mgr.CreateSnapshot(context.Background(), args[0]); err != nil {
		panic(err)
	}
	fmt.Println("created snapshot", args[0])
}

func restoreHandler(cmd *cobra.Command, args []string) {
	if err := mgr.RestoreSnapshot(context.Background(), args[0]); err != nil {
		panic(err)
	}
	fmt.Println("restored", args[0])
}
