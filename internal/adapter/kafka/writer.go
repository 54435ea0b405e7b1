package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/surf-forecast-etl/internal/config"
	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// Message header keys.
const (
	headerRunID       = "run_id"
	headerKind        = "kind"
	headerPublishedAt = "published_at"
)

// Row kinds carried in the kind header.
const (
	kindForecast = "forecast"
	kindTide     = "tide"
)

// messageWriter is the subset of *kafkago.Writer the Writer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes the canonical forecast and tide tables, one message per
// row. It implements pipeline.Loader.
type Writer struct {
	writer        messageWriter
	forecastTopic string
	tideTopic     string
	clock         clockwork.Clock
	logger        *slog.Logger
}

// NewWriter creates a Kafka producer for the configured forecast and tide topics.
func NewWriter(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Writer{
		writer:        w,
		forecastTopic: cfg.KafkaForecastTopic,
		tideTopic:     cfg.KafkaTideTopic,
		clock:         clock,
		logger:        logger,
	}
}

// LoadForecast serializes both tables and publishes them in a single
// WriteMessages call.
func (w *Writer) LoadForecast(ctx context.Context, runID string, forecast domain.ForecastTable, tides domain.TideTable) error {
	publishedAt := w.clock.Now().UTC()

	msgs := make([]kafkago.Message, 0, len(forecast.Rows)+len(tides.Rows))
	for _, row := range forecast.Rows {
		msg, err := serializeForecastRow(row, runID, publishedAt)
		if err != nil {
			return err
		}
		msg.Topic = w.forecastTopic
		msgs = append(msgs, msg)
	}
	for _, row := range tides.Rows {
		msg, err := serializeTideRow(row, runID, publishedAt)
		if err != nil {
			return err
		}
		msg.Topic = w.tideTopic
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	w.logger.Debug("forecast published",
		"run_id", runID,
		"forecast_rows", len(forecast.Rows),
		"tide_rows", len(tides.Rows),
	)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeForecastRow keys the message by spot and local slot so compacted
// topics keep the latest reading per spot and hour.
func serializeForecastRow(row domain.ForecastRow, runID string, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize forecast row: %w", err)
	}
	return kafkago.Message{
		Key:     []byte(row.SpotName + "|" + row.Date + " " + row.Time),
		Value:   data,
		Headers: headers(kindForecast, runID, publishedAt),
	}, nil
}

func serializeTideRow(row domain.TideRow, runID string, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize tide row: %w", err)
	}
	return kafkago.Message{
		Key:     []byte(row.Date + " " + row.Time),
		Value:   data,
		Headers: headers(kindTide, runID, publishedAt),
	}, nil
}

func headers(kind, runID string, publishedAt time.Time) []kafkago.Header {
	return []kafkago.Header{
		{Key: headerKind, Value: []byte(kind)},
		{Key: headerRunID, Value: []byte(runID)},
		{Key: headerPublishedAt, Value: []byte(publishedAt.Format(time.RFC3339))},
	}
}
