package controller

import (
	"context"
	"sync"
	"time"
)

// Alerter shows a message to the operator.
type Alerter interface {
	Alert(ctx context.Context, message string)
}

// Alert is a user-visible message raised by the controller.
type Alert struct {
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`
}

const defaultAlertCapacity = 50

// AlertQueue keeps alerts until the operator UI drains them. When full the
// oldest alert is dropped.
type AlertQueue struct {
	mu       sync.Mutex
	alerts   []Alert
	capacity int
}

func NewAlertQueue(capacity int) *AlertQueue {
	if capacity <= 0 {
		capacity = defaultAlertCapacity
	}
	return &AlertQueue{capacity: capacity}
}

func (q *AlertQueue) Alert(_ context.Context, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.alerts) == q.capacity {
		q.alerts = q.alerts[1:]
	}
	q.alerts = append(q.alerts, Alert{Message: message, RaisedAt: time.Now().UTC()})
}

// Drain returns pending alerts, oldest first, and empties the queue.
func (q *AlertQueue) Drain() []Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.alerts
	q.alerts = nil
	if out == nil {
		return []Alert{}
	}
	return out
}
