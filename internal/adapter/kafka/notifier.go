// Package kafka announces newly published runs on a Kafka topic so
// downstream consumers (cache invalidation, alerting) learn about fresh
// imagery without polling the site.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/model-imagery-service/internal/config"
	"github.com/couchcryptid/model-imagery-service/internal/domain"
)

// PublishedRunEvent is the message body announcing one published run.
type PublishedRunEvent struct {
	Model       string    `json:"model"`
	Cycle       time.Time `json:"cycle"`
	ImagePath   string    `json:"image_path"`
	ImageSHA256 string    `json:"image_sha256"`
	PublishedAt time.Time `json:"published_at"`
}

// Notifier produces published-run events to the configured topic.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the notification topic. Callers
// should only construct one when cfg.KafkaEnabled is set.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger}
}

// NotifyPublished announces the runs published in one cycle in a single
// WriteMessages call.
func (n *Notifier) NotifyPublished(ctx context.Context, runs []domain.PublishedRun) error {
	if len(runs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(runs))
	for i := range runs {
		msg, err := serializeToMessage(eventForRun(runs[i]))
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return n.writer.WriteMessages(ctx, msgs...)
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// eventForRun builds the notification for a freshly published run.
func eventForRun(run domain.PublishedRun) PublishedRunEvent {
	return PublishedRunEvent{
		Model:       run.Model.Slug,
		Cycle:       run.Cycle.UTC(),
		ImagePath:   run.Model.ImagePath(),
		ImageSHA256: run.ImageSHA256,
		PublishedAt: run.PublishedAt.UTC(),
	}
}

// serializeToMessage marshals a published-run event into a Kafka message
// keyed by model slug, so per-model ordering is preserved.
func serializeToMessage(event PublishedRunEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize published run event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Model),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "model", Value: []byte(event.Model)},
			{Key: "published_at", Value: []byte(event.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}
