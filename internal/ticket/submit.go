package ticket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Store persists a completed record. It is called at most once per
// conversation and is never retried.
type Store interface {
	CreateRecord(ctx context.Context, rec Record) (Created, error)
}

type AuditSink interface {
	Emit(ctx context.Context, e SubmissionEvent) error
}

type SubmissionEvent struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"ts"`
	ChatID     int64     `json:"chat_id"`
	UserID     int64     `json:"user_id"`
	Record     Record    `json:"record"`
	OK         bool      `json:"ok"`
	RecordID   string    `json:"record_id,omitempty"`
	RecordURL  string    `json:"record_url,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

const auditEmitTimeout = 5 * time.Second

func (m *Manager) submit(ctx context.Context, key Key, rec Record) Reply {
	if ctx == nil {
		ctx = context.Background()
	}
	id := uuid.NewString()
	started := m.now()

	submitCtx, cancel := context.WithTimeout(ctx, m.submitTimeout)
	created, err := m.store.CreateRecord(submitCtx, rec)
	cancel()

	ev := SubmissionEvent{
		ID:         id,
		Time:       started.UTC(),
		ChatID:     key.ChatID,
		UserID:     key.UserID,
		Record:     rec,
		DurationMS: m.now().Sub(started).Milliseconds(),
	}
	reply := Reply{RemoveKeyboard: true}
	if err != nil {
		kind := ErrorKind(err)
		m.logger.Error("ticket_submit_error",
			"submission_id", id,
			"chat_id", key.ChatID,
			"title", rec.Title,
			"error_kind", kind,
			"error", err.Error(),
		)
		ev.ErrorKind = kind
		ev.Error = err.Error()
		reply.Text = submitErrorText
	} else {
		m.logger.Info("ticket_submit_ok",
			"submission_id", id,
			"chat_id", key.ChatID,
			"title", rec.Title,
			"record_id", created.ID,
		)
		ev.OK = true
		ev.RecordID = created.ID
		ev.RecordURL = created.URL
		reply.Text = submitOKText
	}
	m.emitAudit(ctx, ev)
	return reply
}

func (m *Manager) emitAudit(ctx context.Context, ev SubmissionEvent) {
	if m.audit == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditEmitTimeout)
	defer cancel()
	if err := m.audit.Emit(auditCtx, ev); err != nil {
		m.logger.Warn("ticket_audit_emit_error", "submission_id", ev.ID, "error", err.Error())
	}
}

// ErrorKind classifies a store error for diagnostics. Errors may report their
// own kind by implementing ErrorKind() string.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var kinded interface{ ErrorKind() string }
	if errors.As(err, &kinded) {
		if kind := kinded.ErrorKind(); kind != "" {
			return kind
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}
	return fmt.Sprintf("%T", err)
}
