package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	runtimeworker "github.com/quailyquaily/ticketbot/internal/channelruntime/worker"
	"github.com/quailyquaily/ticketbot/internal/ticket"
)

type telegramJob struct {
	UpdateID  int64
	ChatID    int64
	MessageID int64
	FromID    int64
	Text      string
}

// Run long-polls the Bot API and feeds messages from the authorized user into
// the ticket conversation. It returns nil once ctx is cancelled.
func Run(ctx context.Context, opts RunOptions) error {
	opts = normalizeRunOptions(opts)
	if err := validateRunOptions(opts); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger

	api := newTelegramAPI(opts.HTTPClient, opts.BaseURL, opts.BotToken)
	me, err := api.getMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	logger.Info("telegram_start", "bot", me.Username, "authorized_user_id", opts.AuthorizedUserID)

	workersCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	send := func(chatID int64, reply ticket.Reply) {
		sendCtx, cancel := context.WithTimeout(workersCtx, opts.SendTimeout)
		defer cancel()
		if err := api.sendMessage(sendCtx, chatID, reply.Text, replyMarkup(reply)); err != nil {
			logger.Warn("telegram_send_error", "chat_id", chatID, "error", err.Error())
		}
	}

	mgr, err := ticket.NewManager(ticket.Options{
		AuthorizedUserID: opts.AuthorizedUserID,
		Store:            opts.Store,
		Audit:            opts.Audit,
		Logger:           logger,
		IdleTimeout:      opts.IdleTimeout,
		SubmitTimeout:    opts.SubmitTimeout,
		OnExpire: func(key ticket.Key, reply ticket.Reply) {
			send(key.ChatID, reply)
		},
	})
	if err != nil {
		return err
	}
	defer mgr.Close()

	pool := runtimeworker.NewPool[int64, telegramJob](workersCtx, opts.MaxConcurrency, 16, func(jobCtx context.Context, job telegramJob) {
		reply, ok := mgr.Handle(jobCtx, ticket.Inbound{
			ChatID: job.ChatID,
			UserID: job.FromID,
			Text:   job.Text,
		})
		if !ok {
			return
		}
		send(job.ChatID, reply)
	})

	var offset int64
	for {
		updates, nextOffset, err := api.getUpdates(ctx, offset, opts.PollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logger.Info("telegram_stop", "reason", "context_canceled")
				return nil
			}
			if isTelegramPollTimeoutError(err) {
				logger.Debug("telegram_get_updates_timeout", "error", err.Error())
			} else {
				logger.Warn("telegram_get_updates_error", "error", err.Error())
			}
			select {
			case <-ctx.Done():
				logger.Info("telegram_stop", "reason", "context_canceled")
				return nil
			case <-time.After(1 * time.Second):
			}
			continue
		}
		offset = nextOffset

		for _, u := range updates {
			job, reason := jobFromUpdate(u, opts.AuthorizedUserID)
			if reason != "" {
				logger.Debug("telegram_update_ignored", "update_id", u.UpdateID, "reason", reason)
				continue
			}
			if err := pool.Enqueue(ctx, job.ChatID, job); err != nil {
				if ctx.Err() != nil {
					logger.Info("telegram_stop", "reason", "context_canceled")
					return nil
				}
				logger.Warn("telegram_enqueue_error", "chat_id", job.ChatID, "error", err.Error())
			}
		}
	}
}

// jobFromUpdate applies the authorization gate. Anything not from the
// authorized user is dropped without a reply.
func jobFromUpdate(u telegramUpdate, authorizedUserID int64) (telegramJob, string) {
	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return telegramJob{}, "no_message"
	}
	if msg.From == nil || msg.From.IsBot {
		return telegramJob{}, "no_sender"
	}
	if msg.From.ID != authorizedUserID {
		return telegramJob{}, "unauthorized"
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return telegramJob{}, "no_text"
	}
	return telegramJob{
		UpdateID:  u.UpdateID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		FromID:    msg.From.ID,
		Text:      text,
	}, ""
}

func replyMarkup(r ticket.Reply) *telegramReplyMarkup {
	if len(r.Choices) > 0 {
		row := make([]telegramKeyboardButton, 0, len(r.Choices))
		for _, c := range r.Choices {
			row = append(row, telegramKeyboardButton{Text: c})
		}
		return &telegramReplyMarkup{
			Keyboard:              [][]telegramKeyboardButton{row},
			OneTimeKeyboard:       true,
			ResizeKeyboard:        true,
			InputFieldPlaceholder: r.Placeholder,
		}
	}
	if r.RemoveKeyboard {
		return &telegramReplyMarkup{RemoveKeyboard: true}
	}
	return nil
}
