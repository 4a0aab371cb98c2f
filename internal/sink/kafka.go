package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/BonelessWater/aura/internal/config"
	"github.com/BonelessWater/aura/internal/models"
)

const headerSource = "source"

// KafkaSink publishes each chunk as one message keyed by chunk id.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaSink connects a synchronous producer to the configured brokers.
func NewKafkaSink(cfg *config.KafkaConfig) (*KafkaSink, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.ClientID = cfg.ClientID
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaSinkWithProducer(producer, cfg.Topic), nil
}

// NewKafkaSinkWithProducer wraps an existing producer.
func NewKafkaSinkWithProducer(p sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

// Publish sends the batch with SendMessages.
func (k *KafkaSink) Publish(_ context.Context, source string, chunks []*models.ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	msgs := make([]*sarama.ProducerMessage, 0, len(chunks))
	for _, ch := range chunks {
		value, err := json.Marshal(ch)
		if err != nil {
			return fmt.Errorf("encode chunk %s: %w", ch.ChunkID, err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: k.topic,
			Key:   sarama.StringEncoder(ch.ChunkID),
			Value: sarama.ByteEncoder(value),
			Headers: []sarama.RecordHeader{
				{Key: []byte(headerSource), Value: []byte(source)},
			},
		})
	}
	if err := k.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", k.topic, err)
	}
	return nil
}

// Close shuts down the producer.
func (k *KafkaSink) Close() error {
	return k.producer.Close()
}
