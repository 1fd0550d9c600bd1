package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/quailyquaily/ticketbot/internal/logutil"
	"github.com/quailyquaily/ticketbot/internal/ticket"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// consoleUserID is the principal the console speaks for.
const consoleUserID int64 = 1

type consoleOptions struct {
	Store         ticket.Store
	Audit         ticket.AuditSink
	Logger        *slog.Logger
	IdleTimeout   time.Duration
	SubmitTimeout time.Duration
	Interactive   bool
}

func newConsoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Create a ticket from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			var store ticket.Store
			if flagOrViperBool(cmd, "dry-run", "") {
				store = &yamlStore{w: cmd.OutOrStdout()}
			} else {
				client, err := notionStoreFromFlags(cmd)
				if err != nil {
					return err
				}
				store = client
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

			return runConsole(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), consoleOptions{
				Store:         store,
				Audit:         asAuditSink(sink),
				Logger:        logger,
				IdleTimeout:   flagOrViperDuration(cmd, "idle-timeout", "ticket.idle_timeout"),
				SubmitTimeout: flagOrViperDuration(cmd, "submit-timeout", "ticket.submit_timeout"),
				Interactive:   term.IsTerminal(int(os.Stdin.Fd())),
			})
		},
	}

	cmd.Flags().Bool("dry-run", false, "Print the finished ticket as YAML instead of creating it in Notion.")
	addNotionFlags(cmd)
	addTicketFlags(cmd)

	return cmd
}

// runConsole starts a conversation immediately and feeds it one line at a
// time until EOF or ctx is done.
func runConsole(ctx context.Context, in io.Reader, out io.Writer, opts consoleOptions) error {
	w := &lockedWriter{w: out}
	mgr, err := ticket.NewManager(ticket.Options{
		AuthorizedUserID: consoleUserID,
		Store:            opts.Store,
		Audit:            opts.Audit,
		Logger:           opts.Logger,
		IdleTimeout:      opts.IdleTimeout,
		SubmitTimeout:    opts.SubmitTimeout,
		OnExpire: func(_ ticket.Key, reply ticket.Reply) {
			printReply(w, reply)
		},
	})
	if err != nil {
		return err
	}
	defer mgr.Close()

	handle := func(text string) {
		reply, ok := mgr.Handle(ctx, ticket.Inbound{ChatID: consoleUserID, UserID: consoleUserID, Text: text})
		if ok {
			printReply(w, reply)
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	handle(ticket.CommandStart)
	for {
		if opts.Interactive {
			w.printf("> ")
		}
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			handle(line)
		}
	}
}

func printReply(w *lockedWriter, r ticket.Reply) {
	if len(r.Choices) == 0 {
		w.printf("%s\n", r.Text)
		return
	}
	w.printf("%s\n  [%s]\n", r.Text, strings.Join(r.Choices, " | "))
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.w, format, args...)
}

// yamlStore prints records instead of creating them.
type yamlStore struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *yamlStore) CreateRecord(_ context.Context, rec ticket.Record) (ticket.Created, error) {
	raw, err := yaml.Marshal(rec)
	if err != nil {
		return ticket.Created{}, fmt.Errorf("encode record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "---\n%s", raw); err != nil {
		return ticket.Created{}, err
	}
	return ticket.Created{ID: "dry-run-" + uuid.NewString()}, nil
}
