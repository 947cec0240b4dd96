// Package threads implements a small named-goroutine registry: a
// daemon loop can be created, started, stopped, removed, and woken up
// by string name. It generalizes the teacher's single hard-coded
// goroutine-plus-shutdown-channel pattern (raft-server/server.go's
// Start/Shutdown) to an arbitrary set of named workers, which is how
// the follower stays decoupled from the applier's lifecycle: it only
// ever calls WakeupThread("<uri>-state-machine") by name.
package threads

import (
	"context"
	"fmt"
	"sync"
)

// Descriptor names a unit of work to run as a daemon goroutine. Work
// runs until ctx is cancelled (by StopThread) or it returns on its
// own; Wakeup is signalled through wake whenever WakeupThread(name) is
// called — a size-1 channel, so repeated wakeups before the worker
// drains one coalesce into a single signal.
type Descriptor struct {
	Name string
	Work func(ctx context.Context, wake <-chan struct{})
}

type thread struct {
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}
	work   func(ctx context.Context, wake <-chan struct{})
}

// Registry is the thread-registry interface the follower and its
// collaborators depend on.
type Registry interface {
	CreateThread(desc Descriptor)
	StartThread(name string) error
	StopThread(name string) error
	RemoveThread(name string) error
	WakeupThread(name string)
}

// InMemRegistry is the reference implementation: each named thread is
// its own goroutine.
type InMemRegistry struct {
	mu      sync.Mutex
	threads map[string]*thread
}

func NewInMemRegistry() *InMemRegistry {
	return &InMemRegistry{threads: make(map[string]*thread)}
}

func (r *InMemRegistry) CreateThread(desc Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads[desc.Name] = &thread{
		wake: make(chan struct{}, 1),
		work: desc.Work,
	}
}

func (r *InMemRegistry) StartThread(name string) error {
	r.mu.Lock()
	t, ok := r.threads[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("threads: unknown thread %q", name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	work, wake, done := t.work, t.wake, t.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		work(ctx, wake)
	}()
	return nil
}

func (r *InMemRegistry) StopThread(name string) error {
	r.mu.Lock()
	t, ok := r.threads[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("threads: unknown thread %q", name)
	}
	if t.cancel != nil {
		t.cancel()
	}
	if t.done != nil {
		<-t.done
	}
	return nil
}

func (r *InMemRegistry) RemoveThread(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[name]; !ok {
		return fmt.Errorf("threads: unknown thread %q", name)
	}
	delete(r.threads, name)
	return nil
}

func (r *InMemRegistry) WakeupThread(name string) {
	r.mu.Lock()
	t, ok := r.threads[name]
	r.mu.Unlock()
	if !ok {
		return
	}
	select {
	case t.wake <- struct{}{}:
	default:
		// a wakeup is already pending; coalesce.
	}
}
