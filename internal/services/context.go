package services

import "context"

type contextKey string

const (
	invocationIDKey contextKey = "invocation_id"
	stageKey        contextKey = "stage"
	renditionKey    contextKey = "rendition"
	requestIDKey    contextKey = "request_id"
)

// WithInvocationID annotates context with the pipeline invocation identifier.
func WithInvocationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, invocationIDKey, id)
}

// InvocationIDFromContext extracts the invocation identifier if present.
func InvocationIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(invocationIDKey).(string); ok && v != "" {
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
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRendition annotates context with the rendition (profile) being produced.
func WithRendition(ctx context.Context, rendition string) context.Context {
	if rendition == "" {
		return ctx
	}
	return context.WithValue(ctx, renditionKey, rendition)
}

// RenditionFromContext returns the rendition name if present.
func RenditionFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(renditionKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
