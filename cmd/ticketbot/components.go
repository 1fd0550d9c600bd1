package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/quailyquaily/ticketbot/internal/audit"
	"github.com/quailyquaily/ticketbot/internal/notion"
	"github.com/quailyquaily/ticketbot/internal/statepaths"
	"github.com/quailyquaily/ticketbot/internal/ticket"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func addNotionFlags(cmd *cobra.Command) {
	cmd.Flags().String("notion-token", "", "Notion integration token.")
	cmd.Flags().String("notion-database-id", "", "Notion database that receives new tickets.")
}

func addTicketFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("idle-timeout", 0, "Discard a draft after this much inactivity (0 disables).")
	cmd.Flags().Duration("submit-timeout", 30*time.Second, "Timeout for creating the Notion record.")
	cmd.Flags().Bool("no-audit", false, "Do not append submission outcomes to the audit journal.")
}

func notionStoreFromFlags(cmd *cobra.Command) (*notion.Client, error) {
	return notion.New(notion.Options{
		HTTPClient: &http.Client{Timeout: viper.GetDuration("notion.timeout")},
		BaseURL:    viper.GetString("notion.base_url"),
		Token:      flagOrViperString(cmd, "notion-token", "notion.token"),
		Version:    viper.GetString("notion.version"),
		DatabaseID: flagOrViperString(cmd, "notion-database-id", "notion.database_id"),
	})
}

// auditSinkFromFlags returns a nil sink when auditing is off.
func auditSinkFromFlags(cmd *cobra.Command, logger *slog.Logger) (*audit.JSONLSink, error) {
	if flagOrViperBool(cmd, "no-audit", "") || !viper.GetBool("audit.enabled") {
		return nil, nil
	}
	path := statepaths.AuditPath()
	sink, err := audit.NewJSONLSink(path, viper.GetInt64("audit.rotate_max_bytes"))
	if err != nil {
		return nil, fmt.Errorf("open audit journal: %w", err)
	}
	logger.Info("audit_enabled", "path", path)
	return sink, nil
}

// asAuditSink keeps a nil *JSONLSink from becoming a non-nil interface.
func asAuditSink(sink *audit.JSONLSink) ticket.AuditSink {
	if sink == nil {
		return nil
	}
	return sink
}
