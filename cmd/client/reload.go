package client

import (
	"encoding/json"
	"fmt"

	"modbot-keeper/cmd/root"
	"modbot-keeper/internal/models"
	"modbot-keeper/internal/rpc"

	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload [components...]",
	Short: "Trigger a hot reload batch",
	Long:  `Trigger a hot reload of the named components (all when none are given) by calling the keeper daemon's reload API`,
	Run: func(cmd *cobra.Command, args []string) {
		triggerReload(args)
	},
}

/**
 * Trigger a hot reload batch on the running daemon
 * @param {[]string} components - Target subset, empty means everything
 * @description
 * - Calls POST /modbot/api/v1/reload with the requested subset
 * - Renders the per-component breakdown, not just the aggregate flag
 * - A 409 means another batch is running and the call must be retried
 */
func triggerReload(components []string) {
	rpcClient := rpc.NewHTTPClient(nil)
	defer rpcClient.Close()

	var body interface{}
	if len(components) > 0 {
		body = models.ReloadRequest{Components: components}
	}
	resp, err := rpcClient.Post("/modbot/api/v1/reload", body)
	if err != nil {
		fmt.Printf("Failed to call keeper API: %v\n", err)
		return
	}
	if resp.Error != "" {
		fmt.Printf("Keeper API returned error(%d): %s\n", resp.StatusCode, resp.Error)
		return
	}

	var result models.ReloadResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		fmt.Printf("Failed to parse reload result: %v\n", err)
		return
	}
	if result.Success {
		fmt.Printf("Reload succeeded: %v (took %s)\n", result.ReloadedComponents, result.Duration)
	} else {
		fmt.Printf("Reload finished with errors (took %s):\n", result.Duration)
		for _, e := range result.Errors {
			fmt.Printf("  %s: %s\n", e.Component, e.Error)
		}
		for _, name := range result.ReloadedComponents {
			fmt.Printf("  %s: ok\n", name)
		}
	}
	if result.Commands != nil {
		fmt.Printf("Commands: %d total, added %v, removed %v\n",
			result.Commands.Total, result.Commands.Added, result.Commands.Removed)
	}
}

func init() {
	root.RootCmd.AddCommand(reloadCmd)
}
