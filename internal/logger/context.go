package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context: the logical thread and
// request id a CALL_* frame carries, plus the session and
// peer identity that originated it.
type LogContext struct {
	TraceID         string // OpenTelemetry trace ID
	SpanID          string // OpenTelemetry span ID
	SessionID       string // Session identifier, assigned at HELLO_ACK
	LogicalThreadID string // Logical thread id carried on the wire frame
	RequestID       uint64 // Wire request_id being serviced
	MessageKind     string // HELLO, CALL_METHOD, GET_FIELD, ...
	PeerUser        string // Authenticated peer identity
	StartTime       time.Time
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a freshly bound logical thread.
func NewLogContext(sessionID, logicalThreadID string) *LogContext {
	return &LogContext{
		SessionID:       sessionID,
		LogicalThreadID: logicalThreadID,
		StartTime:       time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithRequest returns a copy with the in-flight request id and kind set.
func (lc *LogContext) WithRequest(requestID uint64, kind string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.RequestID = requestID
		clone.MessageKind = kind
	}
	return clone
}

// WithPeerUser returns a copy with the authenticated peer identity set.
func (lc *LogContext) WithPeerUser(user string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.PeerUser = user
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
