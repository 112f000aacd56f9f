package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	listenAddr string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envListen := os.Getenv("LISTEN")
	if envListen == "" {
		envListen = ":5050"
	}
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:   "kahyeet",
		Short: "Live multiplayer quiz over a line-oriented TCP protocol",
	}

	cmd.PersistentFlags().StringVar(&listenAddr, "listen", envListen, "game TCP address to listen on")
	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.AddCommand(NewServeCmd(&configPath, &listenAddr))
	cmd.AddCommand(NewPlayCmd())
	cmd.AddCommand(NewMigrateCmd(&configPath))
	return cmd
}
