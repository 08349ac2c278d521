package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/chatsentry/chatsentry/internal/store"
)

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers string `json:"brokers" envconfig:"BROKERS"` // comma-separated
	Topic   string `json:"topic" envconfig:"TOPIC"`
}

// KafkaSink publishes alerts as JSON records keyed by chat ID.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a Kafka sink. The writer is lazy: no connection is
// made until the first delivery.
func NewKafkaSink(cfg KafkaConfig) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(cfg.Brokers, ",")...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, a *store.AlertRecord) error {
	value, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("kafka encode: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(a.ChatID),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "alert_type", Value: []byte(a.AlertType)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
