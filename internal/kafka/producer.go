package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-events/internal/logger"
)

// Producer writes change messages to Kafka. The topic is chosen per message.
type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Logger: log}
}

// Publish streams one keyed message. Messages sharing a key land on the same
// partition, so changes to one event stay ordered.
func (p *Producer) Publish(topic, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to write to %s: %w", topic, err)
	}
	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s bytes=%d", key, len(value)))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// LogPublisher stands in for the producer when Kafka is disabled.
type LogPublisher struct {
	Logger *logger.Logger
}

func (p LogPublisher) Publish(topic, key string, value []byte) error {
	p.Logger.Debug("KAFKA", fmt.Sprintf("[DISABLED] %s key=%s %s", topic, key, string(value)))
	return nil
}
