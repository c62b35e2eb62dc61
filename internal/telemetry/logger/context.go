package logger

import "context"

type ctxKey int

const (
	keyLogger ctxKey = iota
	keyRequestID
	keyNodeID
)

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, keyLogger, l)
}

// FromContext returns the logger stored in ctx, or the package default.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(keyLogger).(Logger); ok && l != nil {
		return l
	}
	return Default()
}

// WithRequestID tags ctx with an admin API request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, keyRequestID)
}

// WithNodeID tags ctx with the ID of the cluster node a connection serves.
func WithNodeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyNodeID, id)
}

// NodeIDFromContext returns the node ID, or "".
func NodeIDFromContext(ctx context.Context) string {
	return stringValue(ctx, keyNodeID)
}

// L returns the context logger with request_id and node_id attached when
// ctx carries them.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	var attrs []any
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if id := NodeIDFromContext(ctx); id != "" {
		attrs = append(attrs, "node_id", id)
	}
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

func stringValue(ctx context.Context, key ctxKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}
