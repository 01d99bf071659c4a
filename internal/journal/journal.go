// Package journal records orders, alerts, and errors for later audit.
package journal

import (
	"context"
	"time"
)

// Event represents a journaled event.
type Event struct {
	Time        time.Time
	Type        string // e.g., "order", "alert", "error"
	Description string
	Data        map[string]any
}

// Journaler interface for journaling events.
type Journaler interface {
	LogEvent(ctx context.Context, event Event) error
}

// Reader queries journaled events of one type within [start, end],
// oldest first. Both backends implement it.
type Reader interface {
	GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]Event, error)
}
