package client

import (
	"encoding/json"
	"fmt"

	"modbot-keeper/cmd/root"
	"modbot-keeper/internal/rpc"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show orchestrator status",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printJSON("/modbot/api/v1/status", nil)
	},
}

// printJSON GET指定接口并输出缩进后的JSON
func printJSON(path string, params map[string]interface{}) {
	rpcClient := rpc.NewHTTPClient(nil)
	defer rpcClient.Close()

	resp, err := rpcClient.Get(path, params)
	if err != nil {
		fmt.Printf("Failed to call keeper API: %v\n", err)
		return
	}
	if resp.Error != "" {
		fmt.Printf("Keeper API returned error(%d): %s\n", resp.StatusCode, resp.Error)
		return
	}

	var pretty map[string]interface{}
	if err := json.Unmarshal(resp.Body, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return
	}
	var list []interface{}
	if err := json.Unmarshal(resp.Body, &list); err == nil {
		out, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Println(string(resp.Body))
}

func init() {
	root.RootCmd.AddCommand(statusCmd)
}
