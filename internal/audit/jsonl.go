package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/quailyquaily/ticketbot/internal/journal"
	"github.com/quailyquaily/ticketbot/internal/ticket"
)

// JSONLSink records every submission outcome as one JSON line.
type JSONLSink struct {
	lockPath string
	writer   *journal.Writer

	mu sync.Mutex
}

func NewJSONLSink(path string, rotateMaxBytes int64) (*JSONLSink, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("missing audit path")
	}
	writer, err := journal.Open(path, journal.Options{RotateMaxBytes: rotateMaxBytes})
	if err != nil {
		return nil, fmt.Errorf("open audit journal: %w", err)
	}
	return &JSONLSink{
		lockPath: filepath.Join(filepath.Dir(path), ".locks", filepath.Base(path)+".lck"),
		writer:   writer,
	}, nil
}

func (s *JSONLSink) Emit(ctx context.Context, e ticket.SubmissionEvent) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return journal.ErrClosed
	}
	return journal.WithLock(ctx, s.lockPath, func() error {
		return s.writer.Append(e)
	})
}

func (s *JSONLSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	return err
}
