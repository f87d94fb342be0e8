package cli

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hub status",
	RunE: func(_ *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		result, err := client.Call("hub/status", nil)
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

var standupCmd = &cobra.Command{
	Use:   "standup",
	Short: "Summarize active debates, delegation stats and pending reviews",
	RunE: func(_ *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		result, err := client.Call("collab.standup", nil)
		if err != nil {
			return err
		}
		return printResult(result)
	},
}
