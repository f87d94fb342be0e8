package cli

import (
	"github.com/spf13/cobra"

	"collab-hub/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the live agent hierarchy and collaboration graph",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return tui.Run(tui.Options{StreamURL: hubBaseURL(cfg) + "/stream"})
	},
}
