package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/credencelab/showcase/internal/showcase/storage"
)

// amqpChannel is the slice of *amqp.Channel the publisher and consumer use.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Publisher writes credential-definition messages to a durable queue.
type Publisher struct {
	channel amqpChannel
	queue   string
}

// NewPublisher declares the queue and returns a publisher bound to it.
func NewPublisher(channel amqpChannel, queue string) (*Publisher, error) {
	if channel == nil {
		return nil, fmt.Errorf("amqp channel is required")
	}
	if queue == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &Publisher{channel: channel, queue: queue}, nil
}

// PublishCredentialDefinition serializes one definition for one tenant and
// publishes it persistent to the queue.
func (p *Publisher) PublishCredentialDefinition(ctx context.Context, tenantID string, def storage.CredentialDefinition) error {
	msg := NewCredentialDefinitionMessage(tenantID, def)
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode credential definition message: %w", err)
	}
	err = p.channel.PublishWithContext(
		ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publish credential definition %s: %w", def.ID, err)
	}
	return nil
}
