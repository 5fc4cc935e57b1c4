package event

import (
	"context"
	"fmt"

	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaForwarderName is the subscriber name of the forwarder
const KafkaForwarderName = "kafka-forwarder"

// MessageWriter is the part of *kafka.Writer the forwarder uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer for the configured brokers and topic.
// Messages are hashed by key so one aggregate always lands on one partition.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		BatchTimeout: cfg.BatchTimeout,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// KafkaForwarder publishes every dispatched event to a Kafka topic
type KafkaForwarder struct {
	writer     MessageWriter
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewKafkaForwarder creates a forwarder writing serialized envelopes to writer
func NewKafkaForwarder(writer MessageWriter, serializer *EventSerializer, logger *zap.Logger) *KafkaForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaForwarder{
		writer:     writer,
		serializer: serializer,
		logger:     logger,
	}
}

// EventTypes returns nil: the forwarder receives all events
func (f *KafkaForwarder) EventTypes() []string {
	return nil
}

// HandlerName implements shared.NamedHandler
func (f *KafkaForwarder) HandlerName() string {
	return KafkaForwarderName
}

// Handle writes the event to Kafka keyed by its aggregate ID
func (f *KafkaForwarder) Handle(ctx context.Context, event shared.DomainEvent) error {
	value, err := f.serializer.Serialize(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.AggregateID().String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType())},
			{Key: "tenant_id", Value: []byte(event.TenantID().String())},
		},
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to forward %s %s: %w", event.EventType(), event.EventID(), err)
	}

	f.logger.Debug("Event forwarded",
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
	)
	return nil
}

// Close closes the underlying writer
func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}

var (
	_ shared.EventHandler = (*KafkaForwarder)(nil)
	_ shared.NamedHandler = (*KafkaForwarder)(nil)
	_ MessageWriter       = (*kafka.Writer)(nil)
)
