package logger

import "context"

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	loggerKey  contextKey = "inkweld.logger"
	passIDKey  contextKey = "inkweld.pass_id"
	projectKey contextKey = "inkweld.project"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithPassID tags the context with a sync pass correlation id.
func WithPassID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, passIDKey, id)
}

// PassIDFromContext extracts the sync pass id from context.
func PassIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(passIDKey).(string); ok {
		return id
	}
	return ""
}

// WithProject tags the context with a project key ("username/slug").
func WithProject(ctx context.Context, project string) context.Context {
	return context.WithValue(ctx, projectKey, project)
}

// ProjectFromContext extracts the project key from context.
func ProjectFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(projectKey).(string); ok {
		return p
	}
	return ""
}

// L is a shorthand for FromContext that also enriches the logger
// with the pass id and project from the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if id := PassIDFromContext(ctx); id != "" {
		l = l.With("pass_id", id)
	}
	if p := ProjectFromContext(ctx); p != "" {
		l = l.With("project", p)
	}
	return l
}
