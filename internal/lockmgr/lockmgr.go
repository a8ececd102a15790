// Package lockmgr implements the Lock Manager: named
// exclusive/shared locks that are reentrant per logical thread rather
// than per OS thread, with wait-for-graph cycle detection so a lock
// request that would deadlock fails fast instead of blocking forever.
package lockmgr

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/deshaw/pjrmi-go/internal/logicalthread"
	"github.com/deshaw/pjrmi-go/internal/metrics"
	"github.com/deshaw/pjrmi-go/internal/pjerrors"
	"github.com/deshaw/pjrmi-go/internal/telemetry"
)

// Mode is the mode a lock is requested or held in.
type Mode int

const (
	ModeShared Mode = iota
	ModeExclusive
)

type waiter struct {
	lt    logicalthread.ID
	mode  Mode
	ready chan struct{}
}

// lockState is the state of a single named lock. Zero value is free.
type lockState struct {
	hasExclusive    bool
	exclusiveHolder logicalthread.ID
	exclusiveDepth  int

	sharedHolders map[logicalthread.ID]int

	waitQueue []*waiter
}

// depthFor returns how many times lt currently holds this lock,
// exclusive or shared, or 0 if it doesn't hold it at all.
func (ls *lockState) depthFor(lt logicalthread.ID) int {
	if ls.hasExclusive && ls.exclusiveHolder == lt {
		return ls.exclusiveDepth
	}
	if d, ok := ls.sharedHolders[lt]; ok {
		return d
	}
	return 0
}

func (ls *lockState) currentHolders(excluding logicalthread.ID) []logicalthread.ID {
	var out []logicalthread.ID
	if ls.hasExclusive && ls.exclusiveHolder != excluding {
		out = append(out, ls.exclusiveHolder)
	}
	for h := range ls.sharedHolders {
		if h != excluding {
			out = append(out, h)
		}
	}
	return out
}

// evaluate attempts to grant mode to lt against the lock's current
// state, mutating ls in place on success. It never blocks; on failure
// it reports the current holders lt would need to wait on.
func (ls *lockState) evaluate(mode Mode, lt logicalthread.ID) (granted bool, owners []logicalthread.ID) {
	switch mode {
	case ModeExclusive:
		if ls.hasExclusive && ls.exclusiveHolder == lt {
			ls.exclusiveDepth++
			return true, nil
		}
		if len(ls.sharedHolders) == 1 {
			if d, ok := ls.sharedHolders[lt]; ok {
				// Sole shared holder upgrading to exclusive.
				delete(ls.sharedHolders, lt)
				ls.hasExclusive = true
				ls.exclusiveHolder = lt
				ls.exclusiveDepth = d + 1
				return true, nil
			}
		}
		if !ls.hasExclusive && len(ls.sharedHolders) == 0 {
			ls.hasExclusive = true
			ls.exclusiveHolder = lt
			ls.exclusiveDepth = 1
			return true, nil
		}
		return false, ls.currentHolders(lt)

	case ModeShared:
		if ls.hasExclusive {
			if ls.exclusiveHolder == lt {
				ls.exclusiveDepth++
				return true, nil
			}
			return false, []logicalthread.ID{ls.exclusiveHolder}
		}
		if ls.sharedHolders == nil {
			ls.sharedHolders = make(map[logicalthread.ID]int)
		}
		ls.sharedHolders[lt]++
		return true, nil
	}
	return false, nil
}

// Snapshot is a point-in-time record of the locks a logical thread
// holds, used to unwind to an earlier lock state state and
// later restore to it, releasing anything acquired since"). Token is
// an opaque identifier useful for logging and tracing a particular
// snapshot/restore pair across a session.
type Snapshot struct {
	Token uuid.UUID
	depth map[string]int
}

// Manager owns every named lock in a session.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*lockState
	wfg   *waitForGraph

	// held indexes, for each logical thread, the names of locks it
	// currently holds at any depth — used by Snapshot, Restore and
	// DropAll to avoid scanning every lock in the manager.
	held map[logicalthread.ID]map[string]struct{}

	metrics metrics.LockMetrics
}

// New returns an empty lock manager with metrics collection disabled.
func New() *Manager {
	return NewWithMetrics(nil)
}

// NewWithMetrics returns an empty lock manager reporting to m. A nil m
// disables collection with zero overhead.
func NewWithMetrics(m metrics.LockMetrics) *Manager {
	return &Manager{
		locks:   make(map[string]*lockState),
		wfg:     newWaitForGraph(),
		held:    make(map[logicalthread.ID]map[string]struct{}),
		metrics: m,
	}
}

func (m *Manager) getOrCreateLocked(name string) *lockState {
	ls, ok := m.locks[name]
	if !ok {
		ls = &lockState{}
		m.locks[name] = ls
	}
	return ls
}

func (m *Manager) trackHeldLocked(lt logicalthread.ID, name string) {
	set, ok := m.held[lt]
	if !ok {
		set = make(map[string]struct{})
		m.held[lt] = set
	}
	set[name] = struct{}{}
}

func (m *Manager) untrackHeldLocked(lt logicalthread.ID, name string) {
	set, ok := m.held[lt]
	if !ok {
		return
	}
	delete(set, name)
	if len(set) == 0 {
		delete(m.held, lt)
	}
}

// Acquire blocks until name is acquired in mode by lt, ctx is
// cancelled, or a deadlock is detected.
func (m *Manager) Acquire(ctx context.Context, name string, mode Mode, lt logicalthread.ID) error {
	return m.acquire(ctx, name, mode, lt, true)
}

// TryAcquire attempts to acquire name in mode by lt without blocking,
// returning acquire_failed if it cannot be granted immediately. A
// deadlock that would result from waiting is still reported as
// deadlock rather than acquire_failed, since the caller needs to know
// the difference between "busy" and "would never succeed."
func (m *Manager) TryAcquire(name string, mode Mode, lt logicalthread.ID) error {
	return m.acquire(context.Background(), name, mode, lt, false)
}

func (m *Manager) acquire(ctx context.Context, name string, mode Mode, lt logicalthread.ID, block bool) error {
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "lockmgr.acquire",
		trace.WithAttributes(
			attribute.String("pjrmi.lock_name", name),
			attribute.String("pjrmi.lock_mode", modeString(mode)),
		))
	defer span.End()

	m.mu.Lock()
	ls := m.getOrCreateLocked(name)
	granted, owners := ls.evaluate(mode, lt)
	if granted {
		m.trackHeldLocked(lt, name)
		m.reportLocksHeldLocked()
		m.mu.Unlock()
		if m.metrics != nil {
			m.metrics.RecordAcquire(modeString(mode), time.Since(start))
		}
		return nil
	}

	if m.wfg.WouldCauseCycle(lt, owners) {
		m.mu.Unlock()
		err := pjerrors.Deadlock(ltString(lt), idsToStrings(owners))
		telemetry.RecordError(ctx, err)
		if m.metrics != nil {
			m.metrics.RecordDeadlock()
		}
		return err
	}

	if !block {
		m.mu.Unlock()
		if m.metrics != nil {
			m.metrics.RecordContention(name)
		}
		return pjerrors.AcquireFailed(name)
	}

	if m.metrics != nil {
		m.metrics.RecordContention(name)
	}
	w := &waiter{lt: lt, mode: mode, ready: make(chan struct{})}
	ls.waitQueue = append(ls.waitQueue, w)
	m.wfg.AddWaiter(lt, owners)
	m.mu.Unlock()

	select {
	case <-w.ready:
		if m.metrics != nil {
			m.metrics.RecordAcquire(modeString(mode), time.Since(start))
		}
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		m.removeWaitingLocked(ls, w)
		m.wfg.RemoveWaiter(lt)
		m.mu.Unlock()
		telemetry.RecordError(ctx, ctx.Err())
		if m.metrics != nil {
			m.metrics.RecordTimeout(modeString(mode))
		}
		return ctx.Err()
	}
}

func modeString(mode Mode) string {
	if mode == ModeExclusive {
		return "exclusive"
	}
	return "shared"
}

func ltString(lt logicalthread.ID) string {
	return "lt:" + itoa(uint64(lt))
}

func idsToStrings(ids []logicalthread.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = ltString(id)
	}
	return out
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func (m *Manager) removeWaitingLocked(ls *lockState, w *waiter) {
	for i, other := range ls.waitQueue {
		if other == w {
			ls.waitQueue = append(ls.waitQueue[:i], ls.waitQueue[i+1:]...)
			return
		}
	}
}

// Release gives up one level of depth on name held by lt. If that was
// the last level, the lock is freed and the next compatible waiters
// (if any) are woken.
func (m *Manager) Release(name string, lt logicalthread.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ls, ok := m.locks[name]
	if !ok {
		return pjerrors.LockNotHeld(name)
	}

	switch {
	case ls.hasExclusive && ls.exclusiveHolder == lt:
		ls.exclusiveDepth--
		if ls.exclusiveDepth <= 0 {
			ls.hasExclusive = false
			m.untrackHeldLocked(lt, name)
			m.wakeWaitersLocked(name, ls)
			m.reportLocksHeldLocked()
		}
		return nil

	default:
		d, ok := ls.sharedHolders[lt]
		if !ok {
			return pjerrors.LockNotHeld(name)
		}
		d--
		if d <= 0 {
			delete(ls.sharedHolders, lt)
			m.untrackHeldLocked(lt, name)
			m.wakeWaitersLocked(name, ls)
			m.reportLocksHeldLocked()
		} else {
			ls.sharedHolders[lt] = d
		}
		return nil
	}
}

// reportLocksHeldLocked recomputes and reports the number of named locks
// currently held by anyone. Caller holds m.mu.
func (m *Manager) reportLocksHeldLocked() {
	if m.metrics == nil {
		return
	}
	n := 0
	for _, ls := range m.locks {
		if ls.hasExclusive || len(ls.sharedHolders) > 0 {
			n++
		}
	}
	m.metrics.SetLocksHeld(n)
}

// wakeWaitersLocked grants the lock to as many leading, now-compatible
// waiters as possible, stopping at the first one that still can't be
// granted. A contiguous run of shared waiters at the head of the queue
// wakes together; an exclusive waiter wakes alone.
func (m *Manager) wakeWaitersLocked(name string, ls *lockState) {
	for len(ls.waitQueue) > 0 {
		w := ls.waitQueue[0]
		granted, _ := ls.evaluate(w.mode, w.lt)
		if !granted {
			break
		}
		ls.waitQueue = ls.waitQueue[1:]
		m.wfg.RemoveWaiter(w.lt)
		m.trackHeldLocked(w.lt, name)
		close(w.ready)
	}
}

// Snapshot captures the depth at which lt currently holds every lock
// it holds, for later Restore.
func (m *Manager) Snapshot(lt logicalthread.ID) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	depth := make(map[string]int, len(m.held[lt]))
	for name := range m.held[lt] {
		depth[name] = m.locks[name].depthFor(lt)
	}
	return Snapshot{Token: uuid.New(), depth: depth}
}

// Restore releases every lock lt acquired since snap was taken, down
// to the depth recorded in snap (0 for locks not present in it).
func (m *Manager) Restore(lt logicalthread.ID, snap Snapshot) error {
	m.mu.Lock()
	names := make([]string, 0, len(m.held[lt]))
	for name := range m.held[lt] {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		target := snap.depth[name]
		for {
			m.mu.Lock()
			ls, ok := m.locks[name]
			if !ok || ls.depthFor(lt) <= target {
				m.mu.Unlock()
				break
			}
			m.mu.Unlock()
			if err := m.Release(name, lt); err != nil {
				return err
			}
		}
	}
	return nil
}

// DropAll releases every lock currently held by lt, regardless of
// depth, used when a logical thread's session disconnects.
func (m *Manager) DropAll(lt logicalthread.ID) error {
	m.mu.Lock()
	names := make([]string, 0, len(m.held[lt]))
	for name := range m.held[lt] {
		names = append(names, name)
	}
	m.wfg.RemoveWaiter(lt)
	m.mu.Unlock()

	for _, name := range names {
		for {
			m.mu.Lock()
			ls, ok := m.locks[name]
			if !ok || ls.depthFor(lt) <= 0 {
				m.mu.Unlock()
				break
			}
			m.mu.Unlock()
			if err := m.Release(name, lt); err != nil {
				return err
			}
		}
	}
	return nil
}
