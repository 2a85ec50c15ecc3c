package logging

import (
	"context"
	"log/slog"

	"pipcast/internal/services"
)

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldInvocationID identifies one pipeline invocation.
	FieldInvocationID = "invocation_id"
	// FieldRendition names the output profile being rendered.
	FieldRendition = "rendition"
	// FieldStage is the structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldBackend names the execution backend (hardware or software).
	FieldBackend = "backend"
	// FieldCorrelationID is the structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldError carries the error message.
	FieldError = "error"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.InvocationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldInvocationID, id))
	}
	if rendition, ok := services.RenditionFromContext(ctx); ok {
		fields = append(fields, Rendition(rendition))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
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
