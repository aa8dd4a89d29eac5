package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/activity"
)

const (
	EventActivityRecorded = "ActivityRecorded"
	activityEventVersion  = "1"
)

// ActivityPublisher forwards journal entries to a Kafka topic. Entries are
// keyed by collaborator.
type ActivityPublisher struct {
	producer *Producer
	topic    string
}

func NewActivityPublisher(p *Producer, topic string) *ActivityPublisher {
	return &ActivityPublisher{producer: p, topic: topic}
}

func (a *ActivityPublisher) Publish(ctx context.Context, e activity.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode activity entry: %w", err)
	}
	return a.producer.Publish(ctx, a.topic, e.Collaborator, Envelope{
		EventType:    EventActivityRecorded,
		EventVersion: activityEventVersion,
		OccurredAt:   e.StartedAt,
		AggregateID:  e.ID,
		Data:         data,
	})
}

// DecodeActivity extracts the entry carried by an ActivityRecorded envelope.
func DecodeActivity(raw []byte) (activity.Entry, error) {
	var evt Envelope
	if err := json.Unmarshal(raw, &evt); err != nil {
		return activity.Entry{}, fmt.Errorf("decode envelope: %w", err)
	}
	if evt.EventType != EventActivityRecorded {
		return activity.Entry{}, fmt.Errorf("unexpected event type %q", evt.EventType)
	}
	var e activity.Entry
	if err := json.Unmarshal(evt.Data, &e); err != nil {
		return activity.Entry{}, fmt.Errorf("decode activity entry: %w", err)
	}
	if e.ID == "" {
		e.ID = evt.AggregateID
	}
	return e, nil
}
