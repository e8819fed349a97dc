package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var logBranch string

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Print a branch's commit chain, newest first",
	Run:   logHandler,
}

func init() {
	logCmd.Flags().StringVar(&logBranch, "branch", "main", "branch to inspect")
}

func logHandler(cmd *cobra.Command, args []string) {
	chain, err := mgr.GetBranchCommits(context.Background(), logBranch)
	if err != nil {
		panic(err)
	}
	for _, c := range chain {
		fmt.Println(c)
	}
}
