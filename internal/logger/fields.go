package logger

import "log/slog"

// Standard field keys for structured logging across the bridge. Use these
// keys consistently so request and lock traces can be correlated by log
// aggregation tools.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Wire protocol
	KeyMessageKind      = "message_kind"
	KeyRequestID        = "request_id"
	KeyLogicalThreadID  = "logical_thread_id"
	KeyHandle           = "handle"
	KeyTypeID           = "type_id"
	KeyMember           = "member"
	KeyProtocolVersion  = "protocol_version"
	KeySessionID        = "session_id"
	KeyPeerUser         = "peer_user"
	KeyPeerAddr         = "peer_addr"

	// Method resolution
	KeyCandidateCount = "candidate_count"
	KeyReceiverClass  = "receiver_class"

	// Lock manager
	KeyLockName = "lock_name"
	KeyLockMode = "lock_mode"
	KeyDepth    = "depth"

	// Worker pool
	KeyWorkerCount = "worker_count"
	KeyPoolState   = "pool_state"

	// Shared memory
	KeyShmPath        = "shm_path"
	KeyShmElementKind = "shm_element_kind"
	KeyShmLength      = "shm_length"

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// MessageKind returns a slog.Attr for the wire message kind.
func MessageKind(kind string) slog.Attr { return slog.String(KeyMessageKind, kind) }

// RequestID returns a slog.Attr for the wire request id.
func RequestID(id uint64) slog.Attr { return slog.Uint64(KeyRequestID, id) }

// LogicalThreadID returns a slog.Attr for the logical thread id.
func LogicalThreadID(id string) slog.Attr { return slog.String(KeyLogicalThreadID, id) }

// Handle returns a slog.Attr for a remote-object handle.
func Handle(h uint64) slog.Attr { return slog.Uint64(KeyHandle, h) }

// TypeID returns a slog.Attr for a TypeDescriptor id.
func TypeID(id uint64) slog.Attr { return slog.Uint64(KeyTypeID, id) }

// Member returns a slog.Attr for a method/field/constructor name.
func Member(name string) slog.Attr { return slog.String(KeyMember, name) }

// ProtocolVersion returns a slog.Attr for the negotiated protocol version.
func ProtocolVersion(v int) slog.Attr { return slog.Int(KeyProtocolVersion, v) }

// SessionID returns a slog.Attr for the session identifier.
func SessionID(id string) slog.Attr { return slog.String(KeySessionID, id) }

// PeerUser returns a slog.Attr for the authenticated peer identity.
func PeerUser(u string) slog.Attr { return slog.String(KeyPeerUser, u) }

// PeerAddr returns a slog.Attr for the transport peer address.
func PeerAddr(a string) slog.Attr { return slog.String(KeyPeerAddr, a) }

// CandidateCount returns a slog.Attr for the resolver's surviving candidate count.
func CandidateCount(n int) slog.Attr { return slog.Int(KeyCandidateCount, n) }

// ReceiverClass returns a slog.Attr for the resolver's receiver class name.
func ReceiverClass(name string) slog.Attr { return slog.String(KeyReceiverClass, name) }

// LockName returns a slog.Attr for a named lock.
func LockName(name string) slog.Attr { return slog.String(KeyLockName, name) }

// LockMode returns a slog.Attr for a lock's mode (exclusive/shared).
func LockMode(mode string) slog.Attr { return slog.String(KeyLockMode, mode) }

// Depth returns a slog.Attr for a lock's reentrancy depth.
func Depth(d int) slog.Attr { return slog.Int(KeyDepth, d) }

// WorkerCount returns a slog.Attr for the current pool size.
func WorkerCount(n int) slog.Attr { return slog.Int(KeyWorkerCount, n) }

// PoolState returns a slog.Attr for a worker's scheduling state.
func PoolState(s string) slog.Attr { return slog.String(KeyPoolState, s) }

// ShmPath returns a slog.Attr for a shared-memory file path.
func ShmPath(p string) slog.Attr { return slog.String(KeyShmPath, p) }

// ShmElementKind returns a slog.Attr for a shared-memory array's element kind.
func ShmElementKind(k string) slog.Attr { return slog.String(KeyShmElementKind, k) }

// ShmLength returns a slog.Attr for a shared-memory array's element count.
func ShmLength(n int) slog.Attr { return slog.Int(KeyShmLength, n) }

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
