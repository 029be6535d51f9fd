package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/jinkaiteo/edms/internal/compress"
	"github.com/jinkaiteo/edms/internal/model"
)

const flushTimeoutMs = 5000

// producer is the part of *kafka.Producer the sink needs.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

var _ Sink = (*KafkaSink)(nil)

// KafkaSink forwards records to the audit-log topic. Values are JSON encoded
// with the configured codec; the codec name travels in the content-encoding header.
type KafkaSink struct {
	producer producer
	topic    string
	codec    compress.Compress
}

func NewKafkaSink(brokers []string, topic string, codec compress.Compress) (*KafkaSink, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(brokers, ","),
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return newKafkaSink(p, topic, codec), nil
}

func newKafkaSink(p producer, topic string, codec compress.Compress) *KafkaSink {
	if codec == nil {
		codec = compress.NewNop()
	}
	return &KafkaSink{producer: p, topic: topic, codec: codec}
}

func (k *KafkaSink) Name() string {
	return "kafka"
}

// Deliver produces record and waits for the broker acknowledgement. A record
// that is still queued when ctx ends is left to the producer, which keeps
// retrying it until Close flushes; Deliver then reports ErrDeliveryPending so
// the emitter does not produce it a second time. A record still queued when
// the producer is closed is lost and reported by Close.
func (k *KafkaSink) Deliver(ctx context.Context, record *model.TransitionRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	value, err := k.codec.Encode(payload)
	if err != nil {
		return err
	}

	topic := k.topic
	delivery := make(chan kafka.Event, 1)
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(record.FamilyNumber),
		Value:          value,
		Headers: []kafka.Header{
			{Key: "content-encoding", Value: []byte(k.codec.Name())},
			{Key: "action", Value: []byte(record.Action)},
			{Key: "document-id", Value: []byte(record.DocumentID)},
		},
	}, delivery)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s still queued: %v", ErrDeliveryPending, record.ID, ctx.Err())
	case ev := <-delivery:
		msg, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected kafka delivery event %v", ev)
		}
		return msg.TopicPartition.Error
	}
}

func (k *KafkaSink) Close() error {
	if remaining := k.producer.Flush(flushTimeoutMs); remaining > 0 {
		k.producer.Close()
		return fmt.Errorf("kafka sink closed with %d undelivered messages", remaining)
	}
	k.producer.Close()
	return nil
}
