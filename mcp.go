package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/tejzpr/checkup-bot/internal/db"
	"github.com/tejzpr/checkup-bot/internal/handler"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve read-only submission tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			s := server.NewMCPServer(
				"checkup-bot",
				"1.0.0",
				server.WithToolCapabilities(false),
			)
			handler.New(store).Register(s)
			return server.ServeStdio(s)
		},
	}
}
