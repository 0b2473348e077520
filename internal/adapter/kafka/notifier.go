package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/cme-data-etl/internal/domain"
)

const (
	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Notifier publishes run notifications to a Kafka topic.
// It implements pipeline.Notifier.
type Notifier struct {
	writer  messageWriter
	logger  *slog.Logger
	backoff time.Duration
}

// NewNotifier creates a Kafka producer for the notification topic. The topic
// is created on first write when the cluster allows it.
func NewNotifier(brokers []string, topic string, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Notifier{writer: w, logger: logger, backoff: initialBackoff}
}

// Notify publishes n, retrying a few times while the topic or its leader is
// still coming up.
func (p *Notifier) Notify(ctx context.Context, n domain.Notification) error {
	msg, err := serializeToMessage(n)
	if err != nil {
		return err
	}

	backoff := p.backoff
	for attempt := 1; ; attempt++ {
		err = p.writer.WriteMessages(ctx, msg)
		if err == nil {
			p.logger.Debug("notification published", "status", n.Status, "process_date", n.ProcessDate)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("publish %s notification after %d attempts: %w", n.Status, attempt, err)
		}
		p.logger.Warn("publish notification failed, retrying", "attempt", attempt, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return fmt.Errorf("publish %s notification: %w", n.Status, ctx.Err())
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (p *Notifier) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a Notification into a Kafka message keyed by
// process date, so all notifications for one date land on one partition.
func serializeToMessage(n domain.Notification) (kafkago.Message, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize notification: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(n.ProcessDate),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(n.Status)},
			{Key: "sent_at", Value: []byte(n.At.Format(time.RFC3339))},
		},
	}, nil
}
