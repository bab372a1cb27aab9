package client

import (
	"modbot-keeper/cmd/root"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run the read-only health diagnostic",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printJSON("/healthz", nil)
	},
}

func init() {
	root.RootCmd.AddCommand(healthCmd)
}
