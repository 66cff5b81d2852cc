// Package event publishes economy events to a RabbitMQ topic exchange.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is used when no exchange name is configured.
const DefaultExchange = "economy.events"

// Envelope wraps every published payload.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// Publisher sends events to RabbitMQ. Without a URI it runs disabled and
// every publish is a logged no-op.
type Publisher struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	enabled      bool
	logger       *slog.Logger
	now          func() time.Time

	mu sync.Mutex
}

func NewPublisher(rabbitURI, exchangeName string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchangeName == "" {
		exchangeName = DefaultExchange
	}
	if rabbitURI == "" {
		logger.Warn("RabbitMQ URI is empty, event publishing is disabled")
		return &Publisher{exchangeName: exchangeName, logger: logger, now: time.Now}, nil
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		enabled:      true,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Enabled reports whether events actually leave the process.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// Publish sends payload under routingKey wrapped in an Envelope.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	env := Envelope{
		ID:         uuid.NewString(),
		Type:       routingKey,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if !p.enabled {
		p.logger.Debug("event publishing is disabled, skipping event", "routing_key", routingKey)
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    env.ID,
			Timestamp:    env.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.logger.Debug("published event", "routing_key", routingKey, "event_id", env.ID)
	return nil
}

func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("error closing RabbitMQ channel", "error", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}
	return nil
}
