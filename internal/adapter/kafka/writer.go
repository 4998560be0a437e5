package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/flood-impact-engine/internal/config"
	"github.com/couchcryptid/flood-impact-engine/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// ResultWriter publishes flood results to a Kafka topic, one message per
// water level. It implements pipeline.Exporter.
type ResultWriter struct {
	writer *kafkago.Writer
	topic  string
	logger *slog.Logger
}

// resultRecord is the message value: the result plus the dataset it was
// computed for.
type resultRecord struct {
	RunID     string `json:"run_id,omitempty"`
	DatasetID string `json:"dataset_id"`
	Dataset   string `json:"dataset"`
	domain.FloodResult
}

// NewResultWriter creates a Kafka producer for the configured results topic.
func NewResultWriter(cfg *config.Config, logger *slog.Logger) *ResultWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &ResultWriter{writer: w, topic: cfg.KafkaResultsTopic, logger: logger}
}

// Name identifies the exporter in logs and metrics.
func (w *ResultWriter) Name() string { return "kafka" }

// Export serializes every result of the batch and publishes them in a single
// WriteMessages call. Messages are keyed by dataset and water level so a
// compacted topic keeps only the latest result per pair.
func (w *ResultWriter) Export(ctx context.Context, batch domain.Batch) error {
	if len(batch.Results) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(batch.Results))
	for i := range batch.Results {
		msg, err := serializeToMessage(batch, batch.Results[i])
		if err != nil {
			return &domain.PersistenceError{Destination: w.destination(), Err: err}
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return &domain.PersistenceError{Destination: w.destination(), Err: err}
	}
	w.logger.Debug("published flood results", "topic", w.topic, "dataset_id", batch.DatasetID, "count", len(msgs))
	return nil
}

func (w *ResultWriter) Close() error {
	return w.writer.Close()
}

func (w *ResultWriter) destination() string {
	return "kafka://" + w.topic
}

// MessageKey returns the compaction key for a dataset/level pair.
func MessageKey(datasetID string, waterLevel float64) string {
	return datasetID + "|" + strconv.FormatFloat(waterLevel, 'f', -1, 64)
}

// serializeToMessage marshals one FloodResult into a Kafka message.
func serializeToMessage(batch domain.Batch, res domain.FloodResult) (kafkago.Message, error) {
	data, err := json.Marshal(resultRecord{
		RunID:       batch.RunID,
		DatasetID:   batch.DatasetID,
		Dataset:     batch.Dataset,
		FloodResult: res,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize flood result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(batch.DatasetID, res.WaterLevel)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dataset", Value: []byte(batch.Dataset)},
			{Key: "run_id", Value: []byte(batch.RunID)},
			{Key: "style_version", Value: []byte(domain.StyleVersion)},
		},
	}, nil
}
