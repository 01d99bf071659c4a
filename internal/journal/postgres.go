package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS events (
	id          BIGSERIAL PRIMARY KEY,
	time        TIMESTAMPTZ NOT NULL,
	type        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	data        JSONB
);
CREATE INDEX IF NOT EXISTS idx_events_type_time ON events (type, time);
`

// Postgres journals events into a single events table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(connStr string) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging journal db: %w", err)
	}
	if _, err := db.Exec(eventsSchema); err != nil {
		return nil, fmt.Errorf("creating events schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) LogEvent(ctx context.Context, event Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshaling event data: %w", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO events (time, type, description, data) VALUES ($1, $2, $3, $4)`,
		event.Time, event.Type, event.Description, data)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// GetEvents returns events of one type within [start, end], oldest first.
func (p *Postgres) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]Event, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT time, type, description, data FROM events
		 WHERE type = $1 AND time BETWEEN $2 AND $3 ORDER BY time`,
		eventType, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var data []byte
		if err := rows.Scan(&e.Time, &e.Type, &e.Description, &data); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("decoding event data: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
