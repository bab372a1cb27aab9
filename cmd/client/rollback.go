package client

import (
	"fmt"

	"modbot-keeper/cmd/root"
	"modbot-keeper/internal/models"
	"modbot-keeper/internal/rpc"

	"github.com/spf13/cobra"
)

var recovery bool

var rollbackCmd = &cobra.Command{
	Use:   "rollback [components...]",
	Short: "Roll back to the most recent checkpoint",
	Long: `Roll the system back to the most recent rollback checkpoint.
Named components trigger a selective rollback; --recovery runs the full emergency recovery chain`,
	Run: func(cmd *cobra.Command, args []string) {
		triggerRollback(args, recovery)
	},
}

func triggerRollback(components []string, emergency bool) {
	rpcClient := rpc.NewHTTPClient(nil)
	defer rpcClient.Close()

	path := "/modbot/api/v1/rollback"
	var body interface{}
	switch {
	case emergency:
		path = "/modbot/api/v1/recovery"
	case len(components) > 0:
		path = "/modbot/api/v1/rollback/selective"
		body = models.RollbackRequest{Components: components}
	}

	resp, err := rpcClient.Post(path, body)
	if err != nil {
		fmt.Printf("Failed to call keeper API: %v\n", err)
		return
	}
	if resp.Error != "" {
		fmt.Printf("Keeper API returned error(%d): %s\n", resp.StatusCode, resp.Error)
		return
	}
	fmt.Printf("Rollback completed, status code: %d\n", resp.StatusCode)
}

func init() {
	rollbackCmd.Flags().BoolVar(&recovery, "recovery", false, "run the emergency recovery chain")
	root.RootCmd.AddCommand(rollbackCmd)
}
