package client

import (
	"modbot-keeper/cmd/root"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show hot reload history",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		params := map[string]interface{}{}
		if historyLimit > 0 {
			params["limit"] = historyLimit
		}
		printJSON("/modbot/api/v1/history", params)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "max history entries to show")
	root.RootCmd.AddCommand(historyCmd)
}
