// Package activity keeps a journal of every call the session controller makes
// to its collaborators, for the operator's log view and downstream storage.
package activity

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xlog "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/log"
)

const (
	CollaboratorBackend  = "backend"
	CollaboratorTerminal = "terminal"
)

// Entry is one collaborator call: what was asked, what came back, how long it took.
type Entry struct {
	ID           string          `json:"id"`
	Collaborator string          `json:"collaborator"`
	Method       string          `json:"method"`
	Request      json.RawMessage `json:"request,omitempty"`
	Response     json.RawMessage `json:"response,omitempty"`
	Error        string          `json:"error,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	DurationMS   int64           `json:"duration_ms"`
}

// Failed reports whether the call returned an error.
func (e Entry) Failed() bool { return e.Error != "" }

// Sink receives every recorded entry.
type Sink interface {
	Publish(ctx context.Context, e Entry) error
}

const DefaultBufferSize = 200

// Recorder holds the most recent entries in a fixed-size ring and forwards
// each one to its sinks.
type Recorder struct {
	logger zerolog.Logger
	sinks  []Sink

	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

func NewRecorder(size int, sinks ...Sink) *Recorder {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Recorder{
		logger:  xlog.WithComponent("activity"),
		sinks:   sinks,
		entries: make([]Entry, size),
	}
}

// Record stores e and forwards it to the sinks. Sink failures are logged and
// do not affect the call being journaled.
func (r *Recorder) Record(ctx context.Context, e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}

	r.mu.Lock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()

	for _, s := range r.sinks {
		if err := s.Publish(ctx, e); err != nil {
			r.logger.Warn().Err(err).
				Str(xlog.FieldCollaborator, e.Collaborator).
				Str(xlog.FieldMethod, e.Method).
				Msg("activity sink publish failed")
		}
	}
	return e
}

// Entries returns the buffered entries, oldest first.
func (r *Recorder) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		return append([]Entry{}, r.entries[:r.next]...)
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

// Len returns the number of buffered entries.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}

func encode(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
