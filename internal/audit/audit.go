// Package audit records ambiguous resolutions for later human review.
// Recording is best effort: a failed write is logged and swallowed, never
// allowed to fail the resolution it describes.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Record ties the free-text name a user wrote to the catalog entry the
// reasoning service picked for it.
type Record struct {
	OriginalName string    `json:"original_name"`
	ResolvedID   string    `json:"resolved_id"`
	UserID       string    `json:"user_id"`
	WorkoutID    string    `json:"workout_id,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

type Recorder interface {
	RecordUnresolved(ctx context.Context, rec Record)
}

// Kafka publishes records to a review topic. The writer runs async so the
// resolver never blocks on the broker.
type Kafka struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafka(brokers []string, topic string, logger *slog.Logger) *Kafka {
	k := &Kafka{logger: logger}
	k.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("audit publish failed", "error", err, "messages", len(messages))
			}
		},
	}
	return k
}

func (k *Kafka) RecordUnresolved(ctx context.Context, rec Record) {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	body, err := json.Marshal(rec)
	if err != nil {
		k.logger.Warn("audit record marshal failed", "error", err, "original_name", rec.OriginalName)
		return
	}
	msg := kafka.Message{
		Key:   []byte(rec.UserID),
		Value: body,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.logger.Warn("audit record dropped", "error", err, "original_name", rec.OriginalName)
	}
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Noop discards every record; used when no brokers are configured.
type Noop struct{}

func (Noop) RecordUnresolved(context.Context, Record) {}
