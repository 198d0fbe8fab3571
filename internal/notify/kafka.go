package notify

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
)

// KafkaDispatcher publishes notifications to a Kafka topic, keyed by
// seller so per-seller ordering is preserved.
type KafkaDispatcher struct {
	writer *kafka.Writer
}

// NewKafkaDispatcher creates a dispatcher writing to the given topic.
func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Dispatch publishes the notification as a JSON message.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "marshal notification")
	}

	err = d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.SellerID),
		Value: payload,
	})
	if err != nil {
		return errors.Wrap(err, "write notification")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
