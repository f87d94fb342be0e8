package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <method> [params-json]",
	Short: "Call any hub method directly",
	Long:  "Sends a raw JSON-RPC call to the hub, e.g.\n  collab-hub --agent architect send collab.proposal.publish '{\"sessionKey\":\"...\",\"agentId\":\"architect\",\"topic\":\"caching\",\"proposal\":\"use redis\"}'",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(_ *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		var params any
		if len(args) == 2 {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("params must be valid JSON")
			}
			params = json.RawMessage(args[1])
		}
		result, err := client.Call(args[0], params)
		if err != nil {
			return err
		}
		return printResult(result)
	},
}
