package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeAcknowledger struct {
	acked       bool
	nacked      bool
	nackRequeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	f.nackRequeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type fakeTraction struct {
	err      error
	messages []CredentialDefinitionMessage
}

func (f *fakeTraction) EnsureCredentialDefinition(ctx context.Context, msg CredentialDefinitionMessage) error {
	f.messages = append(f.messages, msg)
	return f.err
}

func delivery(t *testing.T, ack *fakeAcknowledger, redelivered bool) amqp.Delivery {
	t.Helper()

	body, err := json.Marshal(testMessage())
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	return amqp.Delivery{
		Acknowledger: ack,
		Body:         body,
		Redelivered:  redelivered,
	}
}

func TestHandleAcksOnSuccess(t *testing.T) {
	t.Parallel()

	traction := &fakeTraction{}
	processor, err := NewProcessor(traction, func(string, ...any) {})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	ack := &fakeAcknowledger{}
	processor.Handle(context.Background(), delivery(t, ack, false))

	if !ack.acked {
		t.Fatal("expected delivery to be acked")
	}
	if ack.nacked {
		t.Fatal("expected no nack on success")
	}
	if len(traction.messages) != 1 {
		t.Fatalf("forwarded messages = %d, want 1", len(traction.messages))
	}
	if traction.messages[0].DefinitionID != "def-1" {
		t.Fatalf("forwarded definition = %q, want %q", traction.messages[0].DefinitionID, "def-1")
	}
}

func TestHandleRequeuesFirstFailure(t *testing.T) {
	t.Parallel()

	traction := &fakeTraction{err: errors.New("traction unavailable")}
	processor, err := NewProcessor(traction, func(string, ...any) {})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	ack := &fakeAcknowledger{}
	processor.Handle(context.Background(), delivery(t, ack, false))

	if ack.acked {
		t.Fatal("expected no ack on failure")
	}
	if !ack.nacked || !ack.nackRequeue {
		t.Fatalf("nacked = %t requeue = %t, want nack with requeue", ack.nacked, ack.nackRequeue)
	}
}

func TestHandleDropsRedeliveredFailure(t *testing.T) {
	t.Parallel()

	traction := &fakeTraction{err: errors.New("traction unavailable")}
	processor, err := NewProcessor(traction, func(string, ...any) {})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	ack := &fakeAcknowledger{}
	processor.Handle(context.Background(), delivery(t, ack, true))

	if !ack.nacked {
		t.Fatal("expected nack on redelivered failure")
	}
	if ack.nackRequeue {
		t.Fatal("expected redelivered failure to be dropped, not requeued")
	}
}

func TestHandleRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	traction := &fakeTraction{}
	processor, err := NewProcessor(traction, func(string, ...any) {})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	ack := &fakeAcknowledger{}
	processor.Handle(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte("{not json"),
		Redelivered:  true,
	})

	if !ack.nacked || ack.nackRequeue {
		t.Fatal("expected malformed redelivered body to be dropped")
	}
	if len(traction.messages) != 0 {
		t.Fatalf("forwarded messages = %d, want 0", len(traction.messages))
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	processor, err := NewProcessor(&fakeTraction{}, func(string, ...any) {})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	deliveries := make(chan amqp.Delivery)
	if err := processor.Run(ctx, deliveries); !errors.Is(err, context.Canceled) {
		t.Fatalf("run error = %v, want %v", err, context.Canceled)
	}
}

func TestRunStopsOnClosedChannel(t *testing.T) {
	t.Parallel()

	processor, err := NewProcessor(&fakeTraction{}, func(string, ...any) {})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	deliveries := make(chan amqp.Delivery)
	close(deliveries)
	if err := processor.Run(context.Background(), deliveries); err != nil {
		t.Fatalf("run on closed channel error = %v, want nil", err)
	}
}
