// Package cli wires the hub's commands: serving, inspecting state over
// JSON-RPC, and the live hierarchy watch.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"collab-hub/internal/hub"
)

var (
	configPath string
	agentFlag  string
	socketFlag string
	httpFlag   string
	formatFlag string
)

var rootCmd = &cobra.Command{
	Use:           "collab-hub",
	Short:         "Multi-agent deliberation and delegation hub",
	Long:          "collab-hub runs a local hub where agents debate proposals,\nreach moderated decisions and hand work up and down the hierarchy.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&agentFlag, "agent", "", "agent identity for hub calls")
	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "unix socket path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&httpFlag, "http", "", "hub base URL; used instead of the socket when set")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "pretty", "output format: pretty|json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(standupCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(delegationsCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(watchCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig layers the config file, environment and flag overrides.
func loadConfig() (hub.Config, error) {
	cfg, err := hub.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	if socketFlag != "" {
		cfg.Socket.Path = socketFlag
	}
	return cfg, nil
}

func printResult(result json.RawMessage) error {
	if formatFlag == "json" {
		fmt.Println(string(result))
		return nil
	}
	var pretty any
	if err := json.Unmarshal(result, &pretty); err != nil {
		fmt.Println(string(result))
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
