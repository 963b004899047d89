// Package analytics records conversation events to an optional external
// sink. The sink is strictly best-effort: its absence or failure never
// affects a turn's outcome.
package analytics

import (
	"context"
	"time"
)

// Event is one recorded conversation turn.
type Event struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name"`
	Text        string    `json:"text"`
	Stage       string    `json:"stage"`
	Timestamp   time.Time `json:"timestamp"`
}

// Sink records conversation events.
type Sink interface {
	Record(ctx context.Context, evt Event) error
}

// NoopSink discards every event.
type NoopSink struct{}

func (NoopSink) Record(context.Context, Event) error {
	return nil
}
