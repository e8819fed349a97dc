package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgedb/forgedb/cid"
)

var (
	branchFrom string
	branchList bool
)

var branchCmd = &cobra.Command{
	Use:   "branch [name]",
	Short: "Create a branch, or list existing branches with --list",
	Run:   branchHandler,
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout <name>",
	Short: "Switch the working branch",
	Args:  cobra.ExactArgs(1),
	Run:   checkoutHandler,
}

func init() {
	branchCmd.Flags().StringVar(&branchFrom, "from", "", "commit CID to start the branch from")
	branchCmd.Flags().BoolVar(&branchList, "list", false, "list existing branches instead of creating one")
}

func branchHandler(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	if branchList {
		names, err := mgr.ListBranches(ctx)
		if err != nil {
			panic(err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}
	if len(args) != 1 {
		_ = cmd.Usage()
		panic("branch name required unless --list is given")
	}
	var from cid.CID
	if branchFrom != "" {
		parsed, err := cid.ParseCID(branchFrom)
		if err != nil {
			panic(err)
		}
		from = parsed
	}
	if err := mgr.CreateBranch(ctx, args[0], from); err != nil {
		panic(err)
	}
	fmt.Println("created branch", args[0])
}

func checkoutHandler(cmd *cobra.Command, args []string) {
	if err := mgr.CheckoutBranch(context.Background(), args[0]); err != nil {
		panic(err)
	}
	fmt.Println("switched to branch", args[0])
}
