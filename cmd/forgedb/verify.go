package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute every block's hash and report any that no longer match",
	Run:   verifyHandler,
}

func verifyHandler(cmd *cobra.Command, args []string) {
	corrupt, err := dagStore.VerifyIntegrity(context.Background())
	if err != nil {
		panic(err)
	}
	if len(corrupt) == 0 {
		fmt.Println("ok")
		return
	}
	for _, c := range corrupt {
		fmt.Println("corrupt:", c)
	}
}
