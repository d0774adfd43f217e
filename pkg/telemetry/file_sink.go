package telemetry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/XiaoConstantine/spica-go/pkg/errors"
)

// FileSink appends events as JSON lines to a single log file. The file is
// opened O_APPEND so each line lands after everything written before it;
// records are never rewritten.
type FileSink struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// NewFileSink opens (creating if needed) the append-only log at path.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.TelemetryWriteFailed, "cannot create telemetry directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.TelemetryWriteFailed, "cannot open telemetry log"),
			errors.Fields{"path": path})
	}
	return &FileSink{f: f, path: path}, nil
}

// Append writes one event as a JSON line.
func (s *FileSink) Append(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, errors.TelemetryWriteFailed, "cannot encode event")
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(data); err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.TelemetryWriteFailed, "cannot append event"),
			errors.Fields{"path": s.path, "event_type": e.EventType})
	}
	return nil
}

// Close flushes and closes the log file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Sync(); err != nil {
		return err
	}
	return s.f.Close()
}
