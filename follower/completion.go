package follower

import (
	"context"
	"sync"
)

// Completion is a single-shot future fulfilled exactly once with an
// AppendEntriesResponse (invariant 6, spec.md §3) — the Go analogue of
// the original's CompletableFuture<AsyncAppendEntriesResponse>.
type Completion struct {
	once sync.Once
	done chan struct{}
	resp AppendEntriesResponse
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Complete fulfills the completion. Only the first call has any
// effect; subsequent calls are silently ignored, which is what lets
// callers on both the admission path and the handler-loop path call
// it without coordinating.
func (c *Completion) Complete(resp AppendEntriesResponse) {
	c.once.Do(func() {
		c.resp = resp
		close(c.done)
	})
}

// Wait blocks until the completion is fulfilled or ctx is done.
func (c *Completion) Wait(ctx context.Context) (AppendEntriesResponse, error) {
	select {
	case <-c.done:
		return c.resp, nil
	case <-ctx.Done():
		return AppendEntriesResponse{}, ctx.Err()
	}
}

// Done reports whether the completion has already been fulfilled.
func (c *Completion) Done() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
