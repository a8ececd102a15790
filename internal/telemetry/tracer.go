package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for bridge operations, following OpenTelemetry
// semantic conventions where applicable.
const (
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"

	AttrMessageKind     = "pjrmi.message_kind"
	AttrRequestID       = "pjrmi.request_id"
	AttrLogicalThreadID = "pjrmi.logical_thread_id"
	AttrLockName        = "pjrmi.lock_name"
	AttrLockMode        = "pjrmi.lock_mode"

	AttrUID      = "user.uid"
	AttrGID      = "user.gid"
	AttrUsername = "user.name"
	AttrAuth     = "auth.method"
)

// ClientIP returns an attribute for client IP address.
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address.
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// MessageKind returns an attribute for a wire message kind.
func MessageKind(kind string) attribute.KeyValue {
	return attribute.String(AttrMessageKind, kind)
}

// LockName returns an attribute for a named lock.
func LockName(name string) attribute.KeyValue {
	return attribute.String(AttrLockName, name)
}

// UID returns an attribute for user ID.
func UID(uid uint32) attribute.KeyValue {
	return attribute.Int64(AttrUID, int64(uid))
}

// GID returns an attribute for group ID.
func GID(gid uint32) attribute.KeyValue {
	return attribute.Int64(AttrGID, int64(gid))
}

// Username returns an attribute for username.
func Username(name string) attribute.KeyValue {
	return attribute.String(AttrUsername, name)
}

// AuthMethod returns an attribute for authentication method.
func AuthMethod(method string) attribute.KeyValue {
	return attribute.String(AttrAuth, method)
}

// StartProtocolSpan starts a span for a dispatch-level operation, tagging it
// with the bridge's own attribute set rather than a filesystem one.
func StartProtocolSpan(ctx context.Context, component, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, component+"."+operation, trace.WithAttributes(attrs...))
}
