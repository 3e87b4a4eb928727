package services

import "context"

type contextKey string

const (
	playlistKey contextKey = "playlist"
	stageKey    contextKey = "stage"
	stemKey     contextKey = "stem"
	runIDKey    contextKey = "run_id"
)

// WithPlaylist annotates context with the playlist identifier.
func WithPlaylist(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, playlistKey, id)
}

// PlaylistFromContext returns the playlist identifier if present.
func PlaylistFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(playlistKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStem annotates context with the logical unit stem being processed.
func WithStem(ctx context.Context, stem string) context.Context {
	if stem == "" {
		return ctx
	}
	return context.WithValue(ctx, stemKey, stem)
}

// StemFromContext returns the unit stem if present.
func StemFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stemKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with the pipeline run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
