package cli

import (
	"github.com/spf13/cobra"
)

var (
	sessionStatusFlag string
	sessionLimitFlag  int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect deliberation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently updated first",
	RunE: func(_ *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		params := map[string]any{"limit": sessionLimitFlag}
		if sessionStatusFlag != "" {
			params["status"] = sessionStatusFlag
		}
		result, err := client.Call("collab.session.list", params)
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-key>",
	Short: "Show one session with its full log",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		result, err := client.Call("collab.session.get", map[string]any{"sessionKey": args[0]})
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

var sessionsThreadCmd = &cobra.Command{
	Use:   "thread <session-key> <decision-id>",
	Short: "Show one decision thread",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		result, err := client.Call("collab.thread.get", map[string]any{
			"sessionKey": args[0],
			"decisionId": args[1],
		})
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

var sessionsConvergenceCmd = &cobra.Command{
	Use:   "convergence <session-key>",
	Short: "Show convergence metrics for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		result, err := client.Call("collab.convergence.get", map[string]any{"sessionKey": args[0]})
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

func init() {
	sessionsListCmd.Flags().StringVar(&sessionStatusFlag, "status", "", "filter by status: planning|debating|decided|archived")
	sessionsListCmd.Flags().IntVar(&sessionLimitFlag, "limit", 20, "max sessions to return")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsThreadCmd)
	sessionsCmd.AddCommand(sessionsConvergenceCmd)
}
