package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/XiaoConstantine/spica-go/pkg/errors"
)

// SQLiteSink stores events in a local SQLite database so downstream
// consumers can query an experiment's history without parsing log files.
// Rows are insert-only.
type SQLiteSink struct {
	db   *sql.DB
	mu   sync.Mutex
	path string

	initialized sync.Once
}

// NewSQLiteSink opens (or creates) the telemetry database at path. Use
// ":memory:" for an ephemeral database.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.TelemetryWriteFailed, "failed to open telemetry database"),
			errors.Fields{"path": path})
	}
	s := &SQLiteSink{db: db, path: path}
	if err := s.ensureInitialized(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) ensureInitialized() error {
	var initErr error
	s.initialized.Do(func() {
		// WAL keeps external readers from blocking the engine's appends.
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			initErr = errors.Wrap(err, errors.TelemetryWriteFailed, "failed to enable WAL mode")
			return
		}
		query := `
        CREATE TABLE IF NOT EXISTS telemetry_events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            timestamp DATETIME NOT NULL,
            trace_id TEXT NOT NULL,
            domain TEXT NOT NULL,
            event_type TEXT NOT NULL,
            metrics TEXT,
            metadata TEXT
        );

        CREATE INDEX IF NOT EXISTS idx_telemetry_events_type
        ON telemetry_events(event_type, timestamp);
        `
		if _, err := s.db.Exec(query); err != nil {
			initErr = errors.Wrap(err, errors.TelemetryWriteFailed, "failed to initialize telemetry schema")
		}
	})
	return initErr
}

// Append inserts one event row.
func (s *SQLiteSink) Append(ctx context.Context, e Event) error {
	metrics, err := json.Marshal(e.Metrics)
	if err != nil {
		return errors.Wrap(err, errors.TelemetryWriteFailed, "cannot encode metrics")
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return errors.Wrap(err, errors.TelemetryWriteFailed, "cannot encode metadata")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO telemetry_events (timestamp, trace_id, domain, event_type, metrics, metadata)
        VALUES (?, ?, ?, ?, ?, ?)`,
		e.Timestamp.Format(time.RFC3339Nano), e.TraceID, e.Domain, e.EventType,
		string(metrics), string(metadata))
	if err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.TelemetryWriteFailed, "failed to insert event"),
			errors.Fields{"event_type": e.EventType})
	}
	return nil
}

// Count reports how many events of the given type are stored; an empty
// type counts everything.
func (s *SQLiteSink) Count(ctx context.Context, eventType string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	var err error
	if eventType == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM telemetry_events").Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM telemetry_events WHERE event_type = ?", eventType).Scan(&n)
	}
	if err != nil {
		return 0, errors.Wrap(err, errors.Unknown, "failed to count events")
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
