package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	commitBranch  string
	commitAuthor  string
	commitMessage string
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit the pending node/edge writes onto a branch and print the commit CID",
	Run:   commitHandler,
}

func init() {
	commitCmd.Flags().StringVar(&commitBranch, "branch", "main", "branch to commit onto")
	commitCmd.Flags().StringVar(&commitAuthor, "author", "", "commit author")
	commitCmd.Flags().StringVar(&commitMessage, "message", "", "commit message")
}

func commitHandler(cmd *cobra.Command, args []string) {
	c, err := mgr.Commit(context.Background(), commitBranch, commitAuthor, commitMessage)
	if err != nil {
		panic(err)
	}
	fmt.Println(c)
}
