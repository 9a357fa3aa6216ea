package bridge

import (
	"context"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TractionService is the wallet-service surface the processor drives.
type TractionService interface {
	EnsureCredentialDefinition(ctx context.Context, msg CredentialDefinitionMessage) error
}

// Processor consumes credential-definition deliveries and forwards each one
// to the wallet service. A failed delivery is rejected for redelivery once;
// a failure on the redelivered copy drops the message.
type Processor struct {
	traction TractionService
	logf     func(format string, args ...any)
	tracer   trace.Tracer
}

// NewProcessor builds a processor. logf defaults to the standard logger.
func NewProcessor(traction TractionService, logf func(format string, args ...any)) (*Processor, error) {
	if traction == nil {
		return nil, fmt.Errorf("traction service is required")
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Processor{
		traction: traction,
		logf:     logf,
		tracer:   otel.Tracer("showcase.bridge"),
	}, nil
}

// Consume starts consuming the queue with manual acknowledgement and returns
// the delivery channel.
func Consume(channel amqpChannel, queue, consumerTag string) (<-chan amqp.Delivery, error) {
	if channel == nil {
		return nil, fmt.Errorf("amqp channel is required")
	}
	deliveries, err := channel.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue %s: %w", queue, err)
	}
	return deliveries, nil
}

// Run processes deliveries until the context is cancelled or the channel
// closes.
func (p *Processor) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			p.Handle(ctx, delivery)
		}
	}
}

// Handle forwards one delivery. Success acks; failure nacks with requeue
// unless the broker already redelivered the message once.
func (p *Processor) Handle(ctx context.Context, delivery amqp.Delivery) {
	ctx, span := p.tracer.Start(ctx, "bridge.handle_credential_definition")
	defer span.End()

	msg, err := decodeMessage(delivery.Body)
	if err == nil {
		err = p.traction.EnsureCredentialDefinition(ctx, msg)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		requeue := !delivery.Redelivered
		p.logf("bridge: forward credential definition failed (requeue=%t): %v", requeue, err)
		if nackErr := delivery.Nack(false, requeue); nackErr != nil {
			p.logf("bridge: nack delivery: %v", nackErr)
		}
		return
	}

	if ackErr := delivery.Ack(false); ackErr != nil {
		p.logf("bridge: ack delivery: %v", ackErr)
	}
}
