package cmd

import (
	"fmt"

	"modbot-keeper/cmd/root"
	"modbot-keeper/internal/env"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "打印版本号",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(env.Version)
	},
}

func init() {
	root.RootCmd.AddCommand(versionCmd)
}
