package lockmgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deshaw/pjrmi-go/internal/logicalthread"
	"github.com/deshaw/pjrmi-go/internal/pjerrors"
)

func TestAcquireRelease_ExclusiveIsMutuallyExclusive(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "foo", ModeExclusive, 1))
	err := m.TryAcquire("foo", ModeExclusive, 2)
	require.Error(t, err)
	bridgeErr, ok := err.(*pjerrors.BridgeError)
	require.True(t, ok)
	assert.Equal(t, pjerrors.CodeAcquireFailed, bridgeErr.Code)

	require.NoError(t, m.Release("foo", 1))
	require.NoError(t, m.TryAcquire("foo", ModeExclusive, 2))
}

func TestAcquire_ReentrantSameLogicalThreadNeedsMatchingReleases(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "foo", ModeExclusive, 1))
	require.NoError(t, m.Acquire(ctx, "foo", ModeExclusive, 1))
	require.NoError(t, m.Acquire(ctx, "foo", ModeExclusive, 1))

	// Other logical thread still excluded after 2 of 3 releases.
	require.NoError(t, m.Release("foo", 1))
	require.NoError(t, m.Release("foo", 1))
	assert.Error(t, m.TryAcquire("foo", ModeExclusive, 2))

	require.NoError(t, m.Release("foo", 1))
	assert.NoError(t, m.TryAcquire("foo", ModeExclusive, 2))
}

func TestAcquire_MultipleSharedHoldersAllowed(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "foo", ModeShared, 1))
	require.NoError(t, m.Acquire(ctx, "foo", ModeShared, 2))
	require.NoError(t, m.Acquire(ctx, "foo", ModeShared, 3))

	assert.Error(t, m.TryAcquire("foo", ModeExclusive, 4))
}

func TestAcquire_SoleSharedHolderUpgradesToExclusive(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "foo", ModeShared, 1))
	require.NoError(t, m.Acquire(ctx, "foo", ModeExclusive, 1))

	assert.Error(t, m.TryAcquire("foo", ModeShared, 2))

	require.NoError(t, m.Release("foo", 1))
	require.NoError(t, m.Release("foo", 1))
	assert.NoError(t, m.TryAcquire("foo", ModeShared, 2))
}

func TestRelease_NotHeldErrors(t *testing.T) {
	m := New()
	err := m.Release("foo", 1)
	require.Error(t, err)
	bridgeErr, ok := err.(*pjerrors.BridgeError)
	require.True(t, ok)
	assert.Equal(t, pjerrors.CodeLockNotHeld, bridgeErr.Code)
}

func TestAcquire_BlockedWaiterWokenOnRelease(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "foo", ModeExclusive, 1))

	done := make(chan error, 1)
	go func() {
		done <- m.Acquire(ctx, "foo", ModeExclusive, 2)
	}()

	select {
	case <-done:
		t.Fatal("second acquire returned before the lock was released")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, m.Release("foo", 1))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken after release")
	}
}

func TestAcquire_ContextCancelUnblocksWaiter(t *testing.T) {
	m := New()
	ctx := context.Background()
	require.NoError(t, m.Acquire(ctx, "foo", ModeExclusive, 1))

	cctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Acquire(cctx, "foo", ModeExclusive, 2)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled acquire never returned")
	}

	// The lock is still free for a third party after the cancelled
	// waiter drops out of the queue.
	require.NoError(t, m.Release("foo", 1))
	require.NoError(t, m.TryAcquire("foo", ModeExclusive, 3))
}

func TestAcquire_DirectCycleIsDeadlock(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "a", ModeExclusive, 1))
	require.NoError(t, m.Acquire(ctx, "b", ModeExclusive, 2))

	// LT 2 waits on "a" (held by 1); that's fine so far.
	go func() { _ = m.Acquire(ctx, "a", ModeExclusive, 2) }()
	time.Sleep(20 * time.Millisecond)

	// LT 1 now tries to wait on "b" (held by 2, which is waiting on 1
	// via "a"): granting this would complete a cycle 1 -> 2 -> 1.
	err := m.TryAcquire("b", ModeExclusive, 1)
	require.Error(t, err)
	bridgeErr, ok := err.(*pjerrors.BridgeError)
	require.True(t, ok)
	assert.Equal(t, pjerrors.CodeDeadlock, bridgeErr.Code)
}

func TestSnapshotRestore_ReleasesLocksAcquiredSinceSnapshot(t *testing.T) {
	m := New()
	ctx := context.Background()
	var lt logicalthread.ID = 1

	require.NoError(t, m.Acquire(ctx, "a", ModeExclusive, lt))
	snap := m.Snapshot(lt)

	require.NoError(t, m.Acquire(ctx, "b", ModeExclusive, lt))
	require.NoError(t, m.Acquire(ctx, "a", ModeExclusive, lt)) // depth 2 on "a"

	require.NoError(t, m.Restore(lt, snap))

	// "a" is back to depth 1 (still held once), "b" was fully released.
	assert.Error(t, m.TryAcquire("a", ModeExclusive, 2))
	assert.NoError(t, m.TryAcquire("b", ModeExclusive, 2))
}

func TestDropAll_ReleasesEveryLockHeldByLogicalThread(t *testing.T) {
	m := New()
	ctx := context.Background()
	var lt logicalthread.ID = 1

	require.NoError(t, m.Acquire(ctx, "a", ModeExclusive, lt))
	require.NoError(t, m.Acquire(ctx, "b", ModeShared, lt))
	require.NoError(t, m.Acquire(ctx, "b", ModeShared, lt))

	require.NoError(t, m.DropAll(lt))

	assert.NoError(t, m.TryAcquire("a", ModeExclusive, 2))
	assert.NoError(t, m.TryAcquire("b", ModeExclusive, 3))
}

func TestSnapshotToken_IsUniquePerCall(t *testing.T) {
	m := New()
	snap1 := m.Snapshot(1)
	snap2 := m.Snapshot(1)
	assert.NotEqual(t, snap1.Token, snap2.Token)
}
