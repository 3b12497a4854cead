package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliseohh/strelkabot/internal/bot"
	"github.com/eliseohh/strelkabot/internal/config"
	"github.com/eliseohh/strelkabot/internal/logging"
	"github.com/eliseohh/strelkabot/internal/store"
	"github.com/eliseohh/strelkabot/internal/strelka"
	"github.com/eliseohh/strelkabot/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "strelkabot",
		Short:         "Telegram bot reporting Strelka transit card balance",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				if errors.Is(err, config.ErrMissingToken) {
					fmt.Fprintln(os.Stderr, "Установите TELEGRAM_BOT_TOKEN в .env или переменных окружения")
				} else {
					fmt.Fprintln(os.Stderr, err)
				}
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	config.Flags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(os.Stderr, cfg.LogLevel)

	// 1. Storage
	db, err := store.Open(cfg.SQLitePath)
	if err != nil {
		logger.Error("storage init failed", "path", cfg.SQLitePath, "err", err)
		return err
	}
	defer db.Close()

	// 2. Health stub
	srv := web.NewServer(logger, cfg.WebAddr())
	if err := srv.Start(); err != nil {
		logger.Error("web stub failed", "err", err)
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("web stub shutdown", "err", err)
		}
	}()

	// 3. Bot
	client := strelka.NewClient(cfg.StatusURL, cfg.CardTypeID, cfg.Timeout)
	b, err := bot.New(bot.Config{
		Token:         cfg.Token,
		PollTimeout:   cfg.PollTimeout,
		LookupTimeout: cfg.Timeout,
	}, db, client, logger)
	if err != nil {
		logger.Error("bot init failed", "err", err)
		return err
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down...")
		b.Stop()
	}()

	b.Start()
	return nil
}
