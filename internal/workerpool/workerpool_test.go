package workerpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StartsMinWorkers(t *testing.T) {
	p := New(Options{Min: 3})
	defer p.Close()
	assert.Equal(t, 3, p.Size())
}

func TestNew_MinIsClampedToOne(t *testing.T) {
	p := New(Options{Min: 0})
	defer p.Close()
	assert.Equal(t, 1, p.Size())
}

func TestSubmit_RunsTaskAndReturnsWorkerToIdle(t *testing.T) {
	p := New(Options{Min: 1})
	defer p.Close()

	done := make(chan struct{})
	_, err := p.Submit(func(ctx context.Context, w *Worker) { close(done) })
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestSubmit_GrowsPastMinWhenAllWorkersBusy(t *testing.T) {
	p := New(Options{Min: 1})
	defer p.Close()

	blocking := make(chan struct{})
	_, err := p.Submit(func(ctx context.Context, w *Worker) { <-blocking })
	require.NoError(t, err)

	done := make(chan struct{})
	_, err = p.Submit(func(ctx context.Context, w *Worker) { close(done) })
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second task never ran despite pool growth")
	}
	assert.Equal(t, 2, p.Size())
	close(blocking)
}

func TestSubmit_RespectsMaxCapacity(t *testing.T) {
	p := New(Options{Min: 1, Max: 1})
	defer p.Close()

	blocking := make(chan struct{})
	_, err := p.Submit(func(ctx context.Context, w *Worker) { <-blocking })
	require.NoError(t, err)

	_, err = p.Submit(func(ctx context.Context, w *Worker) {})
	assert.ErrorIs(t, err, errAtCapacity)
	close(blocking)
}

func TestCanAcceptCallback_FalseWhenSoleWorkerIsBusy(t *testing.T) {
	p := New(Options{Min: 1, Max: 1})
	defer p.Close()

	blocking := make(chan struct{})
	_, err := p.Submit(func(ctx context.Context, w *Worker) { <-blocking })
	require.NoError(t, err)

	assert.False(t, p.CanAcceptCallback())
	close(blocking)
}

func TestCanAcceptCallback_TrueWithUnboundedGrowth(t *testing.T) {
	p := New(Options{Min: 1})
	defer p.Close()

	blocking := make(chan struct{})
	_, err := p.Submit(func(ctx context.Context, w *Worker) { <-blocking })
	require.NoError(t, err)

	assert.True(t, p.CanAcceptCallback())
	close(blocking)
}

func TestWorker_StateTransitionsAroundReentrantCall(t *testing.T) {
	p := New(Options{Min: 1})
	defer p.Close()

	var observed State
	var mu sync.Mutex
	done := make(chan struct{})

	w, err := p.Submit(func(ctx context.Context, worker *Worker) {
		mu.Lock()
		observed = worker.State()
		mu.Unlock()
		worker.MarkAwaitingResponse()
		worker.MarkOnRequest()
		close(done)
	})
	require.NoError(t, err)
	<-done

	mu.Lock()
	assert.Equal(t, StateBusyOnRequest, observed)
	mu.Unlock()
	assert.Equal(t, uint64(1), w.ID())
}

func TestSubmit_AfterCloseErrors(t *testing.T) {
	p := New(Options{Min: 1})
	p.Close()

	_, err := p.Submit(func(ctx context.Context, w *Worker) {})
	assert.ErrorIs(t, err, errClosed)
}

func TestClose_IsIdempotent(t *testing.T) {
	p := New(Options{Min: 2})
	p.Close()
	assert.NotPanics(t, func() { p.Close() })
}
