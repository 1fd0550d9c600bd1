package telegram

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quailyquaily/ticketbot/internal/ticket"
)

type RunOptions struct {
	BotToken         string
	BaseURL          string
	AuthorizedUserID int64
	PollTimeout      time.Duration
	SendTimeout      time.Duration
	MaxConcurrency   int
	IdleTimeout      time.Duration
	SubmitTimeout    time.Duration
	HTTPClient       *http.Client
	Store            ticket.Store
	Audit            ticket.AuditSink
	Logger           *slog.Logger
}

func normalizeRunOptions(opts RunOptions) RunOptions {
	opts.BotToken = strings.TrimSpace(opts.BotToken)
	opts.BaseURL = strings.TrimSpace(opts.BaseURL)
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 15 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 3
	}
	if opts.IdleTimeout < 0 {
		opts.IdleTimeout = 0
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}

func validateRunOptions(opts RunOptions) error {
	if opts.BotToken == "" {
		return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or TICKETBOT_TELEGRAM_BOT_TOKEN)")
	}
	if opts.AuthorizedUserID <= 0 {
		return fmt.Errorf("missing telegram.authorized_user_id (set via --authorized-user-id or TICKETBOT_TELEGRAM_AUTHORIZED_USER_ID)")
	}
	if opts.Store == nil {
		return fmt.Errorf("missing record store")
	}
	return nil
}
