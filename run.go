package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tejzpr/checkup-bot/internal/bot"
	"github.com/tejzpr/checkup-bot/internal/db"
	"github.com/tejzpr/checkup-bot/internal/logging"
	"github.com/tejzpr/checkup-bot/internal/manager"
	"github.com/tejzpr/checkup-bot/internal/notify"
	"github.com/tejzpr/checkup-bot/internal/report"
	"github.com/tejzpr/checkup-bot/internal/telegram"
	"github.com/tejzpr/checkup-bot/internal/uploads"
	"github.com/tejzpr/checkup-bot/internal/webserver"
)

const sweepInterval = 10 * time.Minute

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the chat transport and collect requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}
}

func runBot(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	files, err := uploads.Open(cfg.UploadDir)
	if err != nil {
		return err
	}
	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := telegram.New(cfg.BotToken, cfg.SendTimeout)
	if err != nil {
		return err
	}
	log.Info("authorized", "bot", client.Username(), "operator", cfg.OperatorID)
	if cfg.OperatorID == 0 {
		log.Warn("operator id is not set; submissions will be stored but not delivered")
	}

	conversations := manager.NewConversationManager(cfg.SessionTTL)
	go conversations.Run(ctx, sweepInterval, func(n int) {
		log.Debug("evicted idle conversations", "count", n)
	})

	broker := manager.NewSSEBroker()
	if cfg.HTTPAddr != "" {
		if err := webserver.New(store, broker, log).Start(ctx, cfg.HTTPAddr); err != nil {
			return fmt.Errorf("failed to start operator API: %w", err)
		}
	}

	b := bot.New(bot.Deps{
		Transport:     client,
		Conversations: conversations,
		Store:         store,
		Files:         files,
		Notifier:      notify.New(client, files, cfg.OperatorID, log),
		Reports:       &report.Generator{Source: store},
		Publisher:     broker,
		OperatorID:    cfg.OperatorID,
		FetchTimeout:  cfg.FetchTimeout,
		StoreTimeout:  cfg.StoreTimeout,
		Log:           log,
	})
	b.Run(ctx, client.Updates(ctx))
	log.Info("stopped")
	return nil
}
