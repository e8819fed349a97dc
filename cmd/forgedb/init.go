package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Open (creating if absent) the store at the configured data directory",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("store ready at", appCfg.Storage.DataDir)
	},
}
