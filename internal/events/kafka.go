// Package events publishes terminal activity to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	xlog "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/log"
)

// Writer is the subset of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	w      Writer
	logger zerolog.Logger
}

// NewProducer returns an asynchronous producer. Messages are partitioned by
// key so entries for one aggregate stay ordered.
func NewProducer(brokers []string) *Producer {
	logger := xlog.WithComponent("events")
	return NewProducerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Warn().Err(err).Int("messages", len(msgs)).Msg("kafka async write failed")
			}
		},
	})
}

func NewProducerWithWriter(w Writer) *Producer {
	return &Producer{w: w, logger: xlog.WithComponent("events")}
}

func (p *Producer) Close() error { return p.w.Close() }

// Envelope is the event schema published on every topic. Keep it small and stable.
type Envelope struct {
	EventType    string          `json:"eventType"`
	EventVersion string          `json:"eventVersion"`
	OccurredAt   time.Time       `json:"occurredAt"`
	AggregateID  string          `json:"aggregateId"`
	Data         json.RawMessage `json:"data"`
}

// Publish writes a single message. key is the partition key.
func (p *Producer) Publish(ctx context.Context, topic, key string, evt Envelope) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	val, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", evt.EventType, err)
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
	}); err != nil {
		return fmt.Errorf("publish %s to %s: %w", evt.EventType, topic, err)
	}
	return nil
}
