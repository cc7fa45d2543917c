// Package sqlite persists decisions and actuator events to a local SQLite
// database, the chamber's on-device audit store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/log"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	phase TEXT NOT NULL,
	co2 INTEGER NOT NULL,
	temperature REAL NOT NULL,
	humidity REAL NOT NULL,
	enabled INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	actions TEXT,
	reasoning TEXT,
	error TEXT
);
CREATE TABLE IF NOT EXISTS actuator_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at DATETIME NOT NULL,
	phase TEXT NOT NULL,
	triggered_by TEXT NOT NULL,
	exhaust_fan INTEGER NOT NULL,
	blower_fan INTEGER NOT NULL,
	humidifier INTEGER NOT NULL,
	led_lights INTEGER NOT NULL
);
`

// Sink writes audit events to SQLite.
type Sink struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and ensures the
// schema exists.
func New(path string) (*Sink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("could not open SQLite database %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping SQLite database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create audit tables: %w", err)
	}
	return &Sink{db: db}, nil
}

// StartSink launches the writer goroutine and returns its event channel.
func (s *Sink) StartSink(ctx context.Context, wg *sync.WaitGroup) chan<- storage.Event {
	events := make(chan storage.Event, 20)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.db.Close()

		for {
			select {
			case ev := <-events:
				s.write(ev)
			case <-ctx.Done():
				log.Info("shutting down SQLite audit sink")
				return
			}
		}
	}()

	return events
}

func (s *Sink) write(ev storage.Event) {
	switch {
	case ev.Decision != nil:
		d := ev.Decision
		actions, _ := json.Marshal(d.Actions)
		reasoning, _ := json.Marshal(d.Reasoning)
		_, err := s.db.Exec(`
			INSERT INTO decisions (id, created_at, phase, co2, temperature, humidity, enabled, failed, actions, reasoning, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, d.ID.String(), d.Timestamp, d.Phase.String(), d.Snapshot.CO2, d.Snapshot.Temperature,
			d.Snapshot.Humidity, d.Enabled, d.Failed, string(actions), string(reasoning), d.Err)
		if err != nil {
			log.Errorf("could not insert decision %s: %v", d.ID, err)
		}
	case ev.Actuator != nil:
		a := ev.Actuator
		_, err := s.db.Exec(`
			INSERT INTO actuator_events (created_at, phase, triggered_by, exhaust_fan, blower_fan, humidifier, led_lights)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, a.At, a.Phase.String(), a.TriggeredBy, a.State.ExhaustFan, a.State.BlowerFan,
			a.State.Humidifier, a.State.LEDLights)
		if err != nil {
			log.Errorf("could not insert actuator event: %v", err)
		}
	}
}
