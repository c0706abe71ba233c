// Package kafka publishes balance-change events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"saldi/internal/events"
	"saldi/internal/log"
)

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
}

// NewPublisher writes to topic on brokers. Messages are keyed by account id
// so events of one account stay ordered within a partition.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		topic: topic,
	}
}

func (p *Publisher) PublishBalanceChanged(ctx context.Context, msg *events.BalanceChanged) error {
	data, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.AccountID),
		Value: data,
		Time:  msg.Timestamp,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(msg.EventID)},
			{Key: "operation", Value: []byte(msg.Operation)},
		},
	})
	if err != nil {
		return fmt.Errorf("write message to %s: %w", p.topic, err)
	}

	slog.DebugContext(ctx, "Published balance change",
		log.FieldComponent, log.ComponentKafka,
		log.FieldEventID, msg.EventID,
		log.FieldAccountID, msg.AccountID,
		"topic", p.topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
