// Package notify streams audit events and escalation alerts off the
// device once connectivity allows.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
)

// ChangePublisher mirrors the local change log onto a Kafka topic, so
// hub-side consumers get audit continuity across field devices.
type ChangePublisher struct {
	writer *kafka.Writer
}

func NewChangePublisher(brokers []string, topic string) *ChangePublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})

	return &ChangePublisher{writer: writer}
}

// Publish sends one change-log entry, keyed by record id so all changes
// to a record land on the same partition in order.
func (p *ChangePublisher) Publish(ctx context.Context, entry model.ChangeLogEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal change entry %s: %w", entry.ID, err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.RecordID),
		Value: value,
	})
}

func (p *ChangePublisher) Close() error {
	return p.writer.Close()
}
