package journal

import (
	"context"
	"sync"
	"time"
)

const memoryCap = 1000

// Memory keeps the most recent events in process memory. Used when no
// database is configured.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) LogEvent(_ context.Context, event Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if len(m.events) > memoryCap {
		m.events = m.events[len(m.events)-memoryCap:]
	}
	return nil
}

// Events returns a snapshot of the retained events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// GetEvents filters the retained events by type and time window, oldest
// first.
func (m *Memory) GetEvents(_ context.Context, eventType string, start, end time.Time) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Type != eventType {
			continue
		}
		if e.Time.Before(start) || e.Time.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
