// Package pjerrors defines the wire-visible error taxonomy shared by every
// PJRmi component. Handlers return a *BridgeError; the dispatch engine
// translates it into an ERROR frame carrying the same Code.
package pjerrors

import "fmt"

// Code categorizes a BridgeError for wire transmission and caller recovery
// decisions.
type Code int

const (
	// CodeVersionMismatch indicates the peer's protocol version differs from
	// ours. Fatal: both sides close the session.
	CodeVersionMismatch Code = iota

	// CodeAuthFailed indicates the handshake's authentication step rejected
	// the peer's supplied identity.
	CodeAuthFailed

	// CodeAccessDenied indicates the target class is outside an active
	// allow-list.
	CodeAccessDenied

	// CodeNoSuchHandle indicates the request referenced a handle that is
	// not present in the local handle table.
	CodeNoSuchHandle

	// CodeNoSuchClass indicates the request referenced a class id the
	// type registry has never seen.
	CodeNoSuchClass

	// CodeNoSuchMethod indicates the method resolver found zero candidates.
	CodeNoSuchMethod

	// CodeNoSuchField indicates a GET_FIELD/SET_FIELD named an unknown field.
	CodeNoSuchField

	// CodeAmbiguousCall indicates the method resolver found more than one
	// incomparable minimal candidate. Carries the candidate list in Detail.
	CodeAmbiguousCall

	// CodeTypeMismatch indicates an argument Value had no compatible
	// parameter under any candidate.
	CodeTypeMismatch

	// CodeCoercionFailed indicates the value coercer could not convert a
	// Value to its target representation (e.g. overflow).
	CodeCoercionFailed

	// CodeRemoteException wraps an exception raised inside a peer handler,
	// carrying an opaque stack blob plus a message.
	CodeRemoteException

	// CodeDeadlock indicates the lock manager's wait-for graph detected a
	// cycle that acquiring this lock would create.
	CodeDeadlock

	// CodeAcquireFailed indicates a tryAcquire that would have blocked.
	CodeAcquireFailed

	// CodeTimedOut indicates a caller-side request timeout expired before
	// a RESULT/ERROR frame arrived.
	CodeTimedOut

	// CodeSessionClosed indicates the session ended while a request was
	// outstanding.
	CodeSessionClosed

	// CodeShmIOFailed indicates a shared-memory read or write failed
	// (collision, corrupt header, partial write).
	CodeShmIOFailed

	// CodeShmOutOfSpace indicates the shared-memory region could not size
	// the requested file.
	CodeShmOutOfSpace

	// CodeProtocolError indicates a malformed frame or unexpected message
	// kind. Fatal: the session is torn down.
	CodeProtocolError

	// CodeLockNotHeld indicates a release targeted a named lock the
	// releasing logical thread does not currently hold.
	CodeLockNotHeld
)

// String returns the wire-taxonomy name used in log lines and ERROR frame
// diagnostics.
func (c Code) String() string {
	switch c {
	case CodeVersionMismatch:
		return "version_mismatch"
	case CodeAuthFailed:
		return "auth_failed"
	case CodeAccessDenied:
		return "access_denied"
	case CodeNoSuchHandle:
		return "no_such_handle"
	case CodeNoSuchClass:
		return "no_such_class"
	case CodeNoSuchMethod:
		return "no_such_method"
	case CodeNoSuchField:
		return "no_such_field"
	case CodeAmbiguousCall:
		return "ambiguous_call"
	case CodeTypeMismatch:
		return "type_mismatch"
	case CodeCoercionFailed:
		return "coercion_failed"
	case CodeRemoteException:
		return "remote_exception"
	case CodeDeadlock:
		return "deadlock"
	case CodeAcquireFailed:
		return "acquire_failed"
	case CodeTimedOut:
		return "timed_out"
	case CodeSessionClosed:
		return "session_closed"
	case CodeShmIOFailed:
		return "shm_io_failed"
	case CodeShmOutOfSpace:
		return "shm_out_of_space"
	case CodeProtocolError:
		return "protocol_error"
	case CodeLockNotHeld:
		return "lock_not_held"
	default:
		return "unknown"
	}
}

// Fatal reports whether this code tears down the whole session rather than
// just failing the originating call.
func (c Code) Fatal() bool {
	return c == CodeProtocolError || c == CodeVersionMismatch
}

// BridgeError is the error type every PJRmi component returns. It carries
// enough structure for the dispatch engine to build an ERROR frame and for
// the caller to recover.
type BridgeError struct {
	Code Code
	// Message is a short human-readable summary.
	Message string
	// Detail holds code-specific structured context: the candidate list
	// for CodeAmbiguousCall, the serialized peer stack for
	// CodeRemoteException, the blocking logical-thread chain for
	// CodeDeadlock.
	Detail any
}

// Error implements the error interface.
func (e *BridgeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a BridgeError with no detail payload.
func New(code Code, format string, args ...any) *BridgeError {
	return &BridgeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a structured detail payload to a BridgeError.
func WithDetail(code Code, detail any, format string, args ...any) *BridgeError {
	return &BridgeError{Code: code, Message: fmt.Sprintf(format, args...), Detail: detail}
}

// AmbiguousCall builds the CodeAmbiguousCall error for the method resolver,
// carrying every tied candidate's signature string.
func AmbiguousCall(member string, candidates []string) *BridgeError {
	return WithDetail(CodeAmbiguousCall, candidates,
		"ambiguous call to %q: %d candidates tied: %v", member, len(candidates), candidates)
}

// NoSuchMethod builds the CodeNoSuchMethod error when zero candidates
// survive arity/name filtering.
func NoSuchMethod(receiver, member string) *BridgeError {
	return New(CodeNoSuchMethod, "no method %q on %s", member, receiver)
}

// VersionMismatch builds the CodeVersionMismatch error a responder sends
// when a peer's HELLO carries a different protocol version.
func VersionMismatch(ours, theirs int32) *BridgeError {
	return New(CodeVersionMismatch, "protocol version mismatch: have %d, peer sent %d", ours, theirs)
}

// AuthFailed builds the CodeAuthFailed error for a handshake whose
// supplied identity the authenticator rejected.
func AuthFailed(reason string) *BridgeError {
	return New(CodeAuthFailed, "authentication failed: %s", reason)
}

// AccessDenied builds the CodeAccessDenied error for a request against a
// class outside the session's active allow-list.
func AccessDenied(class string) *BridgeError {
	return New(CodeAccessDenied, "class %q is not on the allow-list", class)
}

// NoSuchHandle builds the CodeNoSuchHandle error for a request that
// referenced a handle absent from the local export table.
func NoSuchHandle(h uint64) *BridgeError {
	return New(CodeNoSuchHandle, "no local export for handle %d", h)
}

// NoSuchField builds the CodeNoSuchField error for a GET_FIELD/SET_FIELD
// naming an unknown field.
func NoSuchField(receiver, field string) *BridgeError {
	return New(CodeNoSuchField, "no field %q on %s", field, receiver)
}

// Deadlock builds the CodeDeadlock error, carrying the cycle of logical
// thread ids the wait-for graph walked to detect it.
func Deadlock(waiter string, cycle []string) *BridgeError {
	return WithDetail(CodeDeadlock, cycle, "deadlock detected: logical thread %s would cycle through %v", waiter, cycle)
}

// AcquireFailed builds the CodeAcquireFailed error for a tryAcquire that
// would have blocked.
func AcquireFailed(lockName string) *BridgeError {
	return New(CodeAcquireFailed, "lock %q is held and tryAcquire would block", lockName)
}

// LockNotHeld builds the CodeLockNotHeld error for a release of a lock
// the releasing logical thread does not hold.
func LockNotHeld(lockName string) *BridgeError {
	return New(CodeLockNotHeld, "lock %q is not held by this logical thread", lockName)
}

// RemoteException builds the CodeRemoteException error. stackBlob is an
// opaque, implementation-defined serialization of the peer's stack.
func RemoteException(message string, stackBlob []byte) *BridgeError {
	return WithDetail(CodeRemoteException, stackBlob, "%s", message)
}

// SessionClosed builds the CodeSessionClosed error every outstanding
// completion receives when the session tears down.
func SessionClosed() *BridgeError {
	return New(CodeSessionClosed, "session closed")
}

// TimedOut builds the CodeTimedOut error for an expired caller-side timeout.
func TimedOut(requestID uint64) *BridgeError {
	return New(CodeTimedOut, "request %d timed out", requestID)
}
