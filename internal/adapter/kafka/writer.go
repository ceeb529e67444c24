package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sunset-catalog-prep/internal/config"
	"github.com/couchcryptid/sunset-catalog-prep/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes prepared catalog rows to a Kafka topic, one message per
// row in catalog order. It implements pipeline.Loader.
type Writer struct {
	writer    messageWriter
	batchSize int
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newWriter(w, cfg.BatchSize, clockwork.NewRealClock(), logger)
}

func newWriter(w messageWriter, batchSize int, clock clockwork.Clock, logger *slog.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Writer{writer: w, batchSize: batchSize, clock: clock, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Load serializes every row and publishes them in chunks of batchSize, in
// catalog order. Each message carries its row position so consumers reading
// several partitions can restore the shuffled order.
func (w *Writer) Load(ctx context.Context, c *domain.Catalog) error {
	preparedAt := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, 0, w.batchSize)
	for i := 0; i < c.Len(); i++ {
		msg, err := serializeToMessage(c.Row(i), preparedAt)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
		if len(msgs) == w.batchSize {
			if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
				return fmt.Errorf("write messages: %w", err)
			}
			msgs = msgs[:0]
		}
	}
	if len(msgs) > 0 {
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write messages: %w", err)
		}
	}
	w.logger.Debug("catalog published", "rows", c.Len())
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a catalog row into a Kafka message keyed by its
// timestamp.
func serializeToMessage(rec domain.Record, preparedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize catalog row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Timestamp.UTC().Format(time.RFC3339)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "catalog_day", Value: []byte(rec.Day())},
			{Key: "prepared_at", Value: []byte(preparedAt.Format(time.RFC3339))},
		},
	}, nil
}
