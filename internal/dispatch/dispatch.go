// Package dispatch implements the Dispatch Engine: one
// reader loop per transport connection that routes inbound RESULT/ERROR
// frames to the goroutine awaiting them by request id, and submits
// inbound calls to a worker pool for concurrent handling. It supports
// nested/reentrant calls (a handler running on a worker issuing its
// own outbound call back across the same connection) and a PING
// keepalive answered inline without involving the worker pool.
package dispatch

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/deshaw/pjrmi-go/internal/logger"
	"github.com/deshaw/pjrmi-go/internal/logicalthread"
	"github.com/deshaw/pjrmi-go/internal/metrics"
	"github.com/deshaw/pjrmi-go/internal/pjerrors"
	"github.com/deshaw/pjrmi-go/internal/telemetry"
	"github.com/deshaw/pjrmi-go/internal/wire"
	"github.com/deshaw/pjrmi-go/internal/workerpool"
)

// Handler answers an inbound call frame, returning the RESULT or ERROR
// frame to send back. ctx carries the worker running the handler (see
// WorkerFromContext) so a nested outbound Call can toggle that
// worker's busy-awaiting-response state.
type Handler func(ctx context.Context, f wire.Frame) wire.Frame

// Engine owns one connection's framing, request/response correlation,
// and worker dispatch.
type Engine struct {
	conn io.ReadWriteCloser
	pool *workerpool.Pool

	handler Handler

	writeMu sync.Mutex

	waitersMu sync.Mutex
	waiters   map[uint64]chan wire.Frame

	nextRequestID atomic.Uint64

	heartbeatInterval time.Duration

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error

	metrics  metrics.DispatchMetrics
	inFlight atomic.Int64
}

// Options configures an Engine.
type Options struct {
	// HeartbeatInterval is how often PING frames are sent; 0 disables
	// the heartbeat sender (inbound PINGs are still answered either
	// way).
	HeartbeatInterval time.Duration

	// Metrics receives per-request and per-callback observations. Nil
	// disables collection.
	Metrics metrics.DispatchMetrics
}

// New wires an Engine around conn. handler answers every inbound call
// frame (everything for which wire.MessageKind.IsCall is true, except
// PING which the engine answers itself).
func New(conn io.ReadWriteCloser, pool *workerpool.Pool, handler Handler, opts Options) *Engine {
	return &Engine{
		conn:              conn,
		pool:              pool,
		handler:           handler,
		waiters:           make(map[uint64]chan wire.Frame),
		heartbeatInterval: opts.HeartbeatInterval,
		closed:            make(chan struct{}),
		metrics:           opts.Metrics,
	}
}

// Run starts the read loop and, if configured, the heartbeat sender.
// It blocks until the connection fails, ctx is cancelled, or Close is
// called, then returns the reason.
func (e *Engine) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.readLoop(ctx)
	}()

	if e.heartbeatInterval > 0 {
		go e.heartbeatLoop(ctx)
	}

	select {
	case <-ctx.Done():
		e.Close(ctx.Err())
	case <-done:
	}
	<-e.closed
	return e.closeErr
}

// Close tears down the connection and fails every outstanding waiter
// with reason (pjerrors.SessionClosed() if reason is nil).
func (e *Engine) Close(reason error) {
	e.closeOnce.Do(func() {
		if reason == nil {
			reason = pjerrors.SessionClosed()
		}
		e.closeErr = reason
		_ = e.conn.Close()

		e.waitersMu.Lock()
		waiters := e.waiters
		e.waiters = make(map[uint64]chan wire.Frame)
		e.waitersMu.Unlock()

		for _, ch := range waiters {
			close(ch)
		}
		close(e.closed)
	})
}

func (e *Engine) readLoop(ctx context.Context) {
	for {
		f, err := wire.ReadFrame(e.conn)
		if err != nil {
			e.Close(err)
			return
		}

		switch {
		case f.Kind == wire.KindPing:
			e.handlePing(f)

		case f.Kind == wire.KindResult || f.Kind == wire.KindError:
			e.deliver(f)

		case f.Kind == wire.KindReleaseHandle:
			// Answered inline: a refcount decrement is cheap enough
			// that routing it through the worker pool would only add
			// latency without any concurrency benefit.
			e.handler(ctx, f)

		case f.Kind.IsCall():
			e.submitCall(ctx, f)

		default:
			logger.Warn("dispatch: dropping frame of unroutable kind", "kind", f.Kind.String())
		}
	}
}

func (e *Engine) handlePing(f wire.Frame) {
	if f.RequestID == 0 {
		// Unsolicited PING from the peer's own heartbeat: echo it back.
		_ = e.writeFrame(wire.Frame{Kind: wire.KindPing, RequestID: 0, LogicalThreadID: f.LogicalThreadID})
		return
	}
	// A PING we sent, now acknowledged: deliver like any other reply.
	e.deliver(f)
}

func (e *Engine) submitCall(ctx context.Context, f wire.Frame) {
	kind := f.Kind.String()
	start := time.Now()

	_, err := e.pool.Submit(func(taskCtx context.Context, w *workerpool.Worker) {
		if e.metrics != nil {
			e.metrics.SetInFlight(int(e.inFlight.Add(1)))
			defer func() { e.metrics.SetInFlight(int(e.inFlight.Add(-1))) }()
		}

		spanCtx, span := telemetry.StartSpan(taskCtx, "dispatch."+kind,
			trace.WithAttributes(
				attribute.Int64("pjrmi.request_id", int64(f.RequestID)),
				attribute.String("pjrmi.message_kind", kind),
			))
		result := e.handler(WithWorker(spanCtx, w), f)
		if result.Kind == wire.KindError {
			telemetry.RecordError(spanCtx, pjerrors.New(pjerrors.CodeRemoteException, "%s", result.Payload))
		}
		span.End()

		if e.metrics != nil {
			e.metrics.RecordRequest(kind, outcomeOf(result), time.Since(start))
		}
		if err := e.writeFrame(result); err != nil {
			logger.Warn("dispatch: failed writing response frame", logger.Err(err))
		}
	})
	if err != nil {
		errFrame := wire.Frame{
			Kind:            wire.KindError,
			RequestID:       f.RequestID,
			LogicalThreadID: f.LogicalThreadID,
			Payload:         []byte(pjerrors.SessionClosed().Error()),
		}
		_ = e.writeFrame(errFrame)
		if e.metrics != nil {
			e.metrics.RecordRequest(kind, "rejected", time.Since(start))
		}
	}
}

// outcomeOf labels a response frame for metrics: "ok" for a RESULT,
// otherwise the wire message kind name (e.g. "ERROR").
func outcomeOf(f wire.Frame) string {
	if f.Kind == wire.KindResult {
		return "ok"
	}
	return f.Kind.String()
}

func (e *Engine) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(e.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.closed:
			return
		case <-ticker.C:
			_ = e.writeFrame(wire.Frame{Kind: wire.KindPing, RequestID: 0})
		}
	}
}

func (e *Engine) writeFrame(f wire.Frame) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return wire.WriteFrame(e.conn, f)
}

func (e *Engine) registerWaiter(requestID uint64) chan wire.Frame {
	ch := make(chan wire.Frame, 1)
	e.waitersMu.Lock()
	e.waiters[requestID] = ch
	e.waitersMu.Unlock()
	return ch
}

func (e *Engine) cancelWaiter(requestID uint64) {
	e.waitersMu.Lock()
	delete(e.waiters, requestID)
	e.waitersMu.Unlock()
}

func (e *Engine) deliver(f wire.Frame) {
	e.waitersMu.Lock()
	ch, ok := e.waiters[f.RequestID]
	if ok {
		delete(e.waiters, f.RequestID)
	}
	e.waitersMu.Unlock()

	if !ok {
		logger.Warn("dispatch: reply for unknown request id", logger.RequestID(f.RequestID))
		return
	}
	ch <- f
}

// Call sends a frame of kind carrying payload under logical thread lt
// and blocks for its RESULT/ERROR reply. If ctx carries a worker (see
// WithWorker), that worker is marked busy-awaiting-response for the
// duration of the wait so the pool can reason about reentrancy.
func (e *Engine) Call(ctx context.Context, kind wire.MessageKind, payload []byte, lt logicalthread.ID) (wire.Frame, error) {
	fut, err := e.AsyncCall(ctx, kind, payload, lt)
	if err != nil {
		return wire.Frame{}, err
	}

	w, reentrant := WorkerFromContext(ctx)
	if reentrant {
		w.MarkAwaitingResponse()
		defer w.MarkOnRequest()
	}

	var span trace.Span
	if reentrant {
		ctx, span = telemetry.StartSpan(ctx, "dispatch.callback."+kind.String(),
			trace.WithAttributes(attribute.Int64("pjrmi.request_id", int64(fut.RequestID()))))
	}

	start := time.Now()
	result, err := fut.Wait(ctx)

	if reentrant {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		span.End()
	}

	if reentrant && e.metrics != nil {
		outcome := "error"
		if err == nil {
			outcome = outcomeOf(result)
		}
		e.metrics.RecordCallback(outcome, time.Since(start))
	}
	return result, err
}

// AsyncCall sends a frame like Call but returns immediately with a
// Future rather than blocking for the reply.
func (e *Engine) AsyncCall(ctx context.Context, kind wire.MessageKind, payload []byte, lt logicalthread.ID) (*Future, error) {
	select {
	case <-e.closed:
		return nil, pjerrors.SessionClosed()
	default:
	}

	id := e.nextRequestID.Add(1)
	ch := e.registerWaiter(id)

	f := wire.Frame{Kind: kind, RequestID: id, LogicalThreadID: uint64(lt), Payload: payload}
	if err := e.writeFrame(f); err != nil {
		e.cancelWaiter(id)
		return nil, err
	}
	return &Future{requestID: id, ch: ch, engine: e}, nil
}

// Future is a pending reply to an AsyncCall.
type Future struct {
	requestID uint64
	ch        chan wire.Frame
	engine    *Engine
}

// RequestID returns the request id this future correlates with.
func (f *Future) RequestID() uint64 { return f.requestID }

// Wait blocks for the reply, ctx cancellation, or session close.
func (f *Future) Wait(ctx context.Context) (wire.Frame, error) {
	select {
	case fr, ok := <-f.ch:
		if !ok {
			return wire.Frame{}, pjerrors.SessionClosed()
		}
		return fr, nil
	case <-ctx.Done():
		f.engine.cancelWaiter(f.requestID)
		return wire.Frame{}, pjerrors.TimedOut(f.requestID)
	}
}

// CollectFuture waits for every future in order, stopping at the
// first error. The wait is purely local: replies
// already arrive asynchronously via the read loop and are buffered per
// request id, so no additional round trip to the peer is needed to
// "collect" them.
func CollectFuture(ctx context.Context, futures []*Future) ([]wire.Frame, error) {
	out := make([]wire.Frame, len(futures))
	for i, f := range futures {
		fr, err := f.Wait(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = fr
	}
	return out, nil
}

type workerCtxKey struct{}

// WithWorker attaches w to ctx so a nested Call issued from inside a
// handler can toggle w's busy-awaiting-response state.
func WithWorker(ctx context.Context, w *workerpool.Worker) context.Context {
	return context.WithValue(ctx, workerCtxKey{}, w)
}

// WorkerFromContext retrieves the worker attached by WithWorker, if
// any.
func WorkerFromContext(ctx context.Context) (*workerpool.Worker, bool) {
	w, ok := ctx.Value(workerCtxKey{}).(*workerpool.Worker)
	return w, ok
}
