// Package notify provides the log notification sink and fan-out to several sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/cme-data-etl/internal/domain"
	"github.com/couchcryptid/cme-data-etl/internal/pipeline"
)

// Log writes every notification as a structured log line. It never fails.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log notifier.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, n domain.Notification) error {
	attrs := []any{
		"status", n.Status,
		"process_date", n.ProcessDate,
		"rows", n.Rows,
		"anomalies", n.Anomalies,
	}
	if n.Status == domain.StatusError {
		attrs = append(attrs, "stage", n.Stage, "error", n.Error)
		l.logger.ErrorContext(ctx, "run notification", attrs...)
		return nil
	}
	l.logger.InfoContext(ctx, "run notification", attrs...)
	return nil
}

// Multi delivers a notification to every sink, even when some fail, and
// joins their errors.
type Multi []pipeline.Notifier

func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for i, sink := range m {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

var (
	_ pipeline.Notifier = (*Log)(nil)
	_ pipeline.Notifier = Multi(nil)
)
