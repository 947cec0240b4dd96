package threads

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemRegistry_StartRunsWorkUntilStopped(t *testing.T) {
	r := NewInMemRegistry()
	var running atomic.Bool

	r.CreateThread(Descriptor{
		Name: "worker",
		Work: func(ctx context.Context, wake <-chan struct{}) {
			running.Store(true)
			<-ctx.Done()
			running.Store(false)
		},
	})

	require.NoError(t, r.StartThread("worker"))
	require.Eventually(t, running.Load, time.Second, 5*time.Millisecond)

	require.NoError(t, r.StopThread("worker"))
	require.False(t, running.Load())
}

func TestInMemRegistry_WakeupCoalescesPendingSignals(t *testing.T) {
	r := NewInMemRegistry()
	var wakeups atomic.Int32

	r.CreateThread(Descriptor{
		Name: "worker",
		Work: func(ctx context.Context, wake <-chan struct{}) {
			for {
				select {
				case <-wake:
					wakeups.Add(1)
				case <-ctx.Done():
					return
				}
			}
		},
	})
	// repeated wakeups before the worker drains the first one must
	// coalesce into a single pending signal, not queue up. They are sent
	// before the worker starts so that none is drained in between.
	r.WakeupThread("worker")
	r.WakeupThread("worker")
	r.WakeupThread("worker")

	require.NoError(t, r.StartThread("worker"))
	defer r.StopThread("worker")

	require.Eventually(t, func() bool { return wakeups.Load() >= 1 }, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return wakeups.Load() > 1 }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestInMemRegistry_WakeupUnknownThreadIsNoOp(t *testing.T) {
	r := NewInMemRegistry()
	r.WakeupThread("nonexistent")
}

func TestInMemRegistry_StopUnknownThreadErrors(t *testing.T) {
	r := NewInMemRegistry()
	require.Error(t, r.StopThread("nonexistent"))
}

func TestInMemRegistry_RemoveThreadThenOperationsFail(t *testing.T) {
	r := NewInMemRegistry()
	r.CreateThread(Descriptor{Name: "worker", Work: func(ctx context.Context, wake <-chan struct{}) { <-ctx.Done() }})
	require.NoError(t, r.StartThread("worker"))
	require.NoError(t, r.StopThread("worker"))
	require.NoError(t, r.RemoveThread("worker"))

	require.Error(t, r.StartThread("worker"))
	require.Error(t, r.RemoveThread("worker"))
}
