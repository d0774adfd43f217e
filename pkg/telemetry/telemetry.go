// Package telemetry records the engine's per-generation and per-candidate
// events to append-only sinks. Events are never mutated or deleted after
// the fact; a sink that fails to write degrades the run's observability,
// never its progress.
package telemetry

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/XiaoConstantine/spica-go/pkg/logging"
)

// Event is one append-only telemetry record.
type Event struct {
	Timestamp time.Time          `json:"timestamp"`
	TraceID   string             `json:"trace_id"`
	Domain    string             `json:"domain"`
	EventType string             `json:"event_type"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Metadata  map[string]any     `json:"metadata,omitempty"`
}

// Event types emitted by the engine.
const (
	EventGenerationComplete = "generation_complete"
	EventPromotion          = "promotion"
	EventCandidateFailure   = "candidate_failure"
	EventSpaceAdjustment    = "space_adjustment"
	EventRunComplete        = "run_complete"
)

// NewEvent stamps a fresh event with the current time and a trace id.
func NewEvent(domain, eventType string) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		TraceID:   uuid.New().String(),
		Domain:    domain,
		EventType: eventType,
	}
}

// GenerationEvent summarizes one resolved generation: best and mean
// fitness, novelty diversity, and the active search-space cardinality.
// Non-finite fitness (an all-infeasible generation) is recorded as a
// metadata flag because JSON cannot carry infinities.
func GenerationEvent(domain string, generation int, bestFitness, meanFitness, noveltyStdDev, cardinality float64) Event {
	e := NewEvent(domain, EventGenerationComplete)
	e.Metrics = map[string]float64{
		"mean_fitness":       meanFitness,
		"novelty_diversity":  noveltyStdDev,
		"active_cardinality": cardinality,
	}
	e.Metadata = map[string]any{"generation": generation}
	if math.IsInf(bestFitness, 0) || math.IsNaN(bestFitness) {
		e.Metadata["all_infeasible"] = true
	} else {
		e.Metrics["best_fitness"] = bestFitness
	}
	return e
}

// Sink accepts events for durable append-only storage.
type Sink interface {
	Append(ctx context.Context, e Event) error
	Close() error
}

// Writer fans events out to every configured sink. Per the engine's error
// policy a failing sink is logged and skipped; Record never returns an
// error to its caller.
type Writer struct {
	sinks []Sink
}

// NewWriter wraps the given sinks. A writer with no sinks is valid and
// drops everything.
func NewWriter(sinks ...Sink) *Writer {
	return &Writer{sinks: sinks}
}

// Record appends the event to every sink, logging failures as non-fatal.
func (w *Writer) Record(ctx context.Context, e Event) {
	logger := logging.GetLogger()
	for _, s := range w.sinks {
		if err := s.Append(ctx, e); err != nil {
			logger.Warn(ctx, "telemetry write failed for %s event: %v", e.EventType, err)
		}
	}
}

// Close closes all sinks, returning the first error seen.
func (w *Writer) Close() error {
	var first error
	for _, s := range w.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
