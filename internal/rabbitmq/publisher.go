// Package rabbitmq publishes meter events to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeKind = "topic"

// channel is the subset of *amqp.Channel used by the publisher.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// EventPublisher sends raw payloads to a single exchange.
type EventPublisher struct {
	connection *amqp.Connection
	channel    channel
	exchange   string
}

// Dial connects to the broker at url and declares a durable topic exchange.
func Dial(url, exchange string) (*EventPublisher, error) {
	connection, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	p, err := newEventPublisher(ch, exchange)
	if err != nil {
		_ = ch.Close()
		_ = connection.Close()
		return nil, err
	}
	p.connection = connection
	return p, nil
}

func newEventPublisher(ch channel, exchange string) (*EventPublisher, error) {
	err := ch.ExchangeDeclare(
		exchange,
		exchangeKind,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("error declaring exchange %s: %w", exchange, err)
	}

	return &EventPublisher{channel: ch, exchange: exchange}, nil
}

// PublishEvent publishes body on the exchange with the given routing key.
func (p *EventPublisher) PublishEvent(ctx context.Context, routingKey string, body []byte, contentType string) error {
	err := p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  contentType,
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("error publishing in exchange %s with routing key %s: %w", p.exchange, routingKey, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *EventPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return fmt.Errorf("error closing RabbitMQ channel: %w", err)
	}
	if p.connection != nil {
		if err := p.connection.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}
	return nil
}
