package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/macrolens/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := common.GetVersionInfo()
		fmt.Printf("MacroLens version %s\n", info.Version)
		fmt.Printf("  build  : %s\n", info.Build)
		fmt.Printf("  commit : %s\n", info.GitCommit)
		fmt.Printf("  go     : %s\n", info.GoVersion)
	},
}
