// Package events carries payment state changes to Kafka and processed
// connector webhooks to NATS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// NewKafkaWriter returns a writer bound to topic on a comma separated
// broker list.
func NewKafkaWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(splitBrokers(brokers)...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
}

// NewKafkaReader returns a consumer-group reader for topic.
func NewKafkaReader(brokers, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  splitBrokers(brokers),
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// KafkaPublisher writes one message per committed intent change, keyed by
// payment id so a payment's events stay ordered within a partition.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) PublishStateChange(ctx context.Context, event models.PaymentStateChangedEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode state change: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.PaymentID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(event.Operation)},
			{Key: "merchant_id", Value: []byte(event.MerchantID)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish state change for %s: %w", event.PaymentID, err)
	}
	return nil
}

// Consume reads state changes until ctx is cancelled. Undecodable messages
// are logged and skipped.
func Consume(ctx context.Context, reader MessageReader, handle func(context.Context, models.PaymentStateChangedEvent) error) error {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read state change: %w", err)
		}

		var event models.PaymentStateChangedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			telemetry.Logger.Error("Error unmarshaling state change",
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}
		if err := handle(ctx, event); err != nil {
			telemetry.Logger.Error("Error handling state change",
				zap.String("payment_id", event.PaymentID),
				zap.Error(err),
			)
		}
	}
}
