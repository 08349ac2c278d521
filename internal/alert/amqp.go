package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/chatsentry/chatsentry/internal/store"
)

// AMQPConfig configures the RabbitMQ sink.
type AMQPConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"ENABLED"`
	URL      string `json:"url" envconfig:"URL"`
	Exchange string `json:"exchange" envconfig:"EXCHANGE"`
}

// AMQPSink publishes alerts to a durable topic exchange, routed by
// alert type.
type AMQPSink struct {
	conn     *amqp091.Connection
	exchange string
}

// NewAMQPSink dials the broker and declares the exchange.
func NewAMQPSink(cfg AMQPConfig) (*AMQPSink, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}
	return &AMQPSink{conn: conn, exchange: cfg.Exchange}, nil
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Deliver(ctx context.Context, a *store.AlertRecord) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("amqp encode: %w", err)
	}
	err = ch.PublishWithContext(ctx, s.exchange, "alert."+a.AlertType, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    a.AlertID,
			Timestamp:    time.Now(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	return s.conn.Close()
}
