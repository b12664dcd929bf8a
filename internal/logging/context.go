package logging

import (
	"context"
	"log/slog"
)

const (
	FieldComponent     = "component"
	FieldRunID         = "run_id"
	FieldCandidateID   = "candidate_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	candidateIDKey
	stageKey
	correlationIDKey
)

func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

func WithCandidateID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, candidateIDKey, id)
}

func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

func RunIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	return v, ok && v != ""
}

func CandidateIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(candidateIDKey).(int64)
	return v, ok && v != 0
}

// ContextFields extracts standardized slog attributes from ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if id, ok := CandidateIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldCandidateID, id))
	}
	if stage, ok := ctx.Value(stageKey).(string); ok && stage != "" {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	return fields
}

// WithContext returns a logger augmented with fields derived from ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
