package bridge

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/credencelab/showcase/internal/showcase/storage"
)

type fakeChannel struct {
	declaredQueue string
	published     []amqp.Publishing
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.declaredQueue = name
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	ch := make(chan amqp.Delivery)
	close(ch)
	return ch, nil
}

func TestPublishCredentialDefinition(t *testing.T) {
	t.Parallel()

	channel := &fakeChannel{}
	publisher, err := NewPublisher(channel, "credential-definitions")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if channel.declaredQueue != "credential-definitions" {
		t.Fatalf("declared queue = %q, want %q", channel.declaredQueue, "credential-definitions")
	}

	def := storage.CredentialDefinition{
		ID:      "def-1",
		Name:    "Student Card",
		Version: "1.0",
		Type:    storage.CredentialTypeAnoncred,
		Attributes: []storage.CredentialAttribute{
			{Name: "student_first_name", Type: storage.CredentialAttributeTypeString},
		},
		Revocation: &storage.RevocationInfo{Title: "Revocation"},
	}
	if err := publisher.PublishCredentialDefinition(context.Background(), "tenant-1", def); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(channel.published) != 1 {
		t.Fatalf("published len = %d, want 1", len(channel.published))
	}

	publishing := channel.published[0]
	if publishing.ContentType != "application/json" {
		t.Fatalf("content type = %q, want application/json", publishing.ContentType)
	}
	if publishing.DeliveryMode != amqp.Persistent {
		t.Fatalf("delivery mode = %d, want persistent", publishing.DeliveryMode)
	}

	var msg CredentialDefinitionMessage
	if err := json.Unmarshal(publishing.Body, &msg); err != nil {
		t.Fatalf("decode published body: %v", err)
	}
	if msg.TenantID != "tenant-1" {
		t.Fatalf("tenant = %q, want tenant-1", msg.TenantID)
	}
	if msg.DefinitionID != "def-1" {
		t.Fatalf("definition id = %q, want def-1", msg.DefinitionID)
	}
	if !msg.SupportRevocation {
		t.Fatal("expected revocation support flag from revocation info")
	}
	if len(msg.Attributes) != 1 || msg.Attributes[0].Name != "student_first_name" {
		t.Fatal("expected attribute names to be forwarded")
	}
}

func TestPublishCredentialDefinitionValidates(t *testing.T) {
	t.Parallel()

	channel := &fakeChannel{}
	publisher, err := NewPublisher(channel, "credential-definitions")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	def := storage.CredentialDefinition{ID: "def-1", Name: "Student Card", Version: "1.0"}
	if err := publisher.PublishCredentialDefinition(context.Background(), "", def); err == nil {
		t.Fatal("expected missing tenant error")
	}
	if len(channel.published) != 0 {
		t.Fatalf("published len = %d, want 0", len(channel.published))
	}
}
