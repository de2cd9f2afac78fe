package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sidecar version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version: %s\nCommit: %s\n", version.GetVersion(), version.GetCommit())
	},
}
