package cli

import (
	"github.com/spf13/cobra"
)

var (
	delegationAgentFlag         string
	delegationStateFlag         string
	delegationLimitFlag         int
	delegationToFlag            string
	delegationJustificationFlag string
	delegationPriorityFlag      string
	delegationStatusFlag        string
	delegationArtifactFlag      string
	delegationDecisionFlag      string
	delegationCommentFlag       string
)

var delegationsCmd = &cobra.Command{
	Use:   "delegations",
	Short: "Inspect and drive the delegation workflow",
}

var delegationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List delegations, newest first",
	RunE: func(_ *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		params := map[string]any{"limit": delegationLimitFlag}
		if delegationAgentFlag != "" {
			params["agentId"] = delegationAgentFlag
		}
		if delegationStateFlag != "" {
			params["state"] = delegationStateFlag
		}
		result, err := client.Call("delegation.list", params)
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

var delegationsShowCmd = &cobra.Command{
	Use:   "show <delegation-id>",
	Short: "Show one delegation",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		result, err := client.Call("delegation.get", map[string]any{"delegationId": args[0]})
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

var delegationsAssignCmd = &cobra.Command{
	Use:   "assign <task>",
	Short: "Hand a task to another agent (requires --agent and --to)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		params := map[string]any{
			"fromAgentId": agentFlag,
			"toAgentId":   delegationToFlag,
			"task":        args[0],
		}
		if delegationJustificationFlag != "" {
			params["justification"] = delegationJustificationFlag
		}
		if delegationPriorityFlag != "" {
			params["priority"] = delegationPriorityFlag
		}
		result, err := client.Call("delegation.assign", params)
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

var delegationsReviewCmd = &cobra.Command{
	Use:   "review <delegation-id>",
	Short: "Approve or reject an upward hand-off (requires --agent)",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		params := map[string]any{
			"delegationId": args[0],
			"reviewerId":   agentFlag,
			"decision":     delegationDecisionFlag,
		}
		if delegationCommentFlag != "" {
			params["comment"] = delegationCommentFlag
		}
		result, err := client.Call("delegation.review", params)
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

var delegationsCompleteCmd = &cobra.Command{
	Use:   "complete <delegation-id>",
	Short: "Report a delegation finished (requires --agent)",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		result, err := client.Call("delegation.complete", map[string]any{
			"delegationId": args[0],
			"agentId":      agentFlag,
			"status":       delegationStatusFlag,
			"artifact":     delegationArtifactFlag,
		})
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

func init() {
	delegationsListCmd.Flags().StringVar(&delegationAgentFlag, "for", "", "filter by agent on either side")
	delegationsListCmd.Flags().StringVar(&delegationStateFlag, "state", "", "filter by state")
	delegationsListCmd.Flags().IntVar(&delegationLimitFlag, "limit", 20, "max delegations to return")

	delegationsAssignCmd.Flags().StringVar(&delegationToFlag, "to", "", "target agent id")
	delegationsAssignCmd.Flags().StringVar(&delegationJustificationFlag, "justification", "", "why the task is being handed off")
	delegationsAssignCmd.Flags().StringVar(&delegationPriorityFlag, "priority", "", "low|normal|high|urgent")
	_ = delegationsAssignCmd.MarkFlagRequired("to")

	delegationsReviewCmd.Flags().StringVar(&delegationDecisionFlag, "decision", "approve", "approve|reject")
	delegationsReviewCmd.Flags().StringVar(&delegationCommentFlag, "comment", "", "review feedback")

	delegationsCompleteCmd.Flags().StringVar(&delegationStatusFlag, "status", "success", "success|failure")
	delegationsCompleteCmd.Flags().StringVar(&delegationArtifactFlag, "artifact", "", "result summary")

	delegationsCmd.AddCommand(delegationsListCmd)
	delegationsCmd.AddCommand(delegationsShowCmd)
	delegationsCmd.AddCommand(delegationsAssignCmd)
	delegationsCmd.AddCommand(delegationsReviewCmd)
	delegationsCmd.AddCommand(delegationsCompleteCmd)
}
