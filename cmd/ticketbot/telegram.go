package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quailyquaily/ticketbot/internal/channelruntime/telegram"
	"github.com/quailyquaily/ticketbot/internal/logutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newTelegramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "Run the ticket bot on Telegram (long polling)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			store, err := notionStoreFromFlags(cmd)
			if err != nil {
				return err
			}
			sink, err := auditSinkFromFlags(cmd, logger)
			if err != nil {
				return err
			}
			if sink != nil {
				defer func() { _ = sink.Close() }()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return telegram.Run(ctx, telegram.RunOptions{
				BotToken:         flagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"),
				BaseURL:          viper.GetString("telegram.base_url"),
				AuthorizedUserID: flagOrViperInt64(cmd, "authorized-user-id", "telegram.authorized_user_id"),
				PollTimeout:      flagOrViperDuration(cmd, "telegram-poll-timeout", "telegram.poll_timeout"),
				SendTimeout:      viper.GetDuration("telegram.send_timeout"),
				MaxConcurrency:   flagOrViperInt(cmd, "telegram-max-concurrency", "telegram.max_concurrency"),
				IdleTimeout:      flagOrViperDuration(cmd, "idle-timeout", "ticket.idle_timeout"),
				SubmitTimeout:    flagOrViperDuration(cmd, "submit-timeout", "ticket.submit_timeout"),
				Store:            store,
				Audit:            asAuditSink(sink),
				Logger:           logger,
			})
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().Int64("authorized-user-id", 0, "Telegram user id allowed to create tickets.")
	cmd.Flags().Duration("telegram-poll-timeout", 30*time.Second, "Long polling timeout for getUpdates.")
	cmd.Flags().Int("telegram-max-concurrency", 3, "Max number of chats processed concurrently.")
	addNotionFlags(cmd)
	addTicketFlags(cmd)

	return cmd
}
