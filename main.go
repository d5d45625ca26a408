package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tejzpr/checkup-bot/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "checkup-bot",
		Short:         "Chat intake bot for property check requests",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (env and .env override it)")

	root.AddCommand(runCmd(), mcpCmd(), reportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
