package live

import (
	"context"
	"encoding/json"
	"fmt"

	"churnboard/internal/churn"
	"churnboard/internal/platform/kafka/consumer"
)

// MessageProducer writes one keyed message to a topic.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// KafkaPublisher announces prediction events on a topic keyed by owner, so
// one owner's events stay ordered within a partition.
type KafkaPublisher struct {
	producer MessageProducer
	topic    string
}

func NewKafkaPublisher(producer MessageProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev churn.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return p.producer.Publish(ctx, p.topic, []byte(ev.OwnerID.String()), value)
}

// EventHandler decodes consumed prediction events and hands them to the
// notifier. Unknown event types are ignored.
func EventHandler(n *Notifier) consumer.HandlerFunc {
	return func(ctx context.Context, msg *consumer.Message) error {
		var ev churn.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("decode event at offset %d: %w", msg.Offset, err)
		}
		if ev.Type != churn.EventPredictionCreated {
			return nil
		}
		return n.Notify(ctx, ev)
	}
}
