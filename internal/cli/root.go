package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the CLI with ctx as the root command context.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	var port, configPath string

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:          "economy-service",
		Short:        "Quiz economy service: points ledger, redemptions and live play over WebSocket",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&port, "port", os.Getenv("PORT"), "port to listen on (overrides server.port)")
	flags.StringVar(&configPath, "config", defaultConfig, "path to YAML config")

	cmd.AddCommand(
		NewStartCmd(&configPath, &port),
		NewMigrateCmd(&configPath),
		NewSeedCmd(&configPath),
	)
	return cmd
}
