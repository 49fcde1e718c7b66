package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier delivers NotificationPayload messages to a dataset's
// configured notify_topic. Each write is synchronous (one broker ack). A
// notify failure is returned to the driver, which then reports status
// error for the run; the publish that already succeeded is not unwound.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier builds a notifier writing to topic on the given broker
// addresses. Partitioning key is the dataset_id, so all notifications for
// one dataset land on the same partition and preserve publish order.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Notify implements Notifier.
func (n *KafkaNotifier) Notify(ctx context.Context, payload NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(payload.DatasetID),
		Value: body,
	}

	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write notification for %s: %w", payload.DatasetID, err)
	}

	return nil
}

// Close releases the underlying writer's connections.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
