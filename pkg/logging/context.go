package logging

import "context"

type contextKey string

const (
	runIDKey       contextKey = "run_id"
	generationKey  contextKey = "generation"
	candidateIDKey contextKey = "candidate_id"
)

// WithRunID attaches the optimization run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID returns the run identifier carried by the context, if any.
func GetRunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	return v, ok
}

// WithGeneration attaches the current generation counter to the context.
func WithGeneration(ctx context.Context, generation int) context.Context {
	return context.WithValue(ctx, generationKey, generation)
}

// GetGeneration returns the generation carried by the context, if any.
func GetGeneration(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(generationKey).(int)
	return v, ok
}

// WithCandidateID attaches a candidate identifier to the context.
func WithCandidateID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, candidateIDKey, id)
}

// GetCandidateID returns the candidate identifier carried by the context,
// if any.
func GetCandidateID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(candidateIDKey).(string)
	return v, ok
}
