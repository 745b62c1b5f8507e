package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/epi-metrics-service/internal/config"
	"github.com/couchcryptid/epi-metrics-service/internal/domain"
	"github.com/couchcryptid/epi-metrics-service/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
)

// Names of the published national series, used in keys and headers.
const (
	SeriesCases        = "cases"
	SeriesVaccinations = "vaccinations"
	SeriesAdmissions   = "admissions"
)

// Writer publishes each rebuilt snapshot's national series to a Kafka topic.
// It implements pipeline.SnapshotLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadSnapshot publishes one message per national series in a single
// WriteMessages call.
func (w *Writer) LoadSnapshot(ctx context.Context, snap *pipeline.Snapshot) error {
	msgs, err := snapshotMessages(snap)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write snapshot messages: %w", err)
	}
	w.logger.Debug("snapshot published", "snapshot_id", snap.ID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func snapshotMessages(snap *pipeline.Snapshot) ([]kafkago.Message, error) {
	series := []struct {
		name string
		s    domain.Series
	}{
		{SeriesCases, snap.Cases},
		{SeriesVaccinations, snap.Vaccinations},
		{SeriesAdmissions, snap.Admissions},
	}
	msgs := make([]kafkago.Message, len(series))
	for i, s := range series {
		msg, err := serializeToMessage(snap, s.name, s.s)
		if err != nil {
			return nil, err
		}
		msgs[i] = msg
	}
	return msgs, nil
}

// serializeToMessage marshals one series of a snapshot into a Kafka message
// keyed by snapshot and series name.
func serializeToMessage(snap *pipeline.Snapshot, name string, s domain.Series) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s series: %w", name, err)
	}
	return kafkago.Message{
		Key:   []byte(snap.ID + ":" + name),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "series", Value: []byte(name)},
			{Key: "snapshot_id", Value: []byte(snap.ID)},
			{Key: "built_at", Value: []byte(snap.BuiltAt.Format(time.RFC3339))},
		},
	}, nil
}
