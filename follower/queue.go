package follower

import (
	"container/heap"
	"context"
	"sync"

	"github.com/google/uuid"
)

// pendingRequest pairs an inbound request with its completion handle
// and the correlation id used in warn-level log lines (spec.md §7).
type pendingRequest struct {
	id         uuid.UUID
	request    AppendEntriesRequest
	completion *Completion
}

// requestHeap orders pendingRequests by (PrevLogTerm, PrevLogIndex)
// ascending — spec.md §4.1's ordering key, so that a straggler from a
// deposed leader term is always handled before a request from a newer
// term at the same prefix. Ties are equivalent prefixes and need no
// third tiebreaker (spec.md §9).
type requestHeap []*pendingRequest

func (h requestHeap) Len() int { return len(h) }
func (h requestHeap) Less(i, j int) bool {
	if h[i].request.PrevLogTerm != h[j].request.PrevLogTerm {
		return h[i].request.PrevLogTerm < h[j].request.PrevLogTerm
	}
	return h[i].request.PrevLogIndex < h[j].request.PrevLogIndex
}
func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *requestHeap) Push(x any)   { *h = append(*h, x.(*pendingRequest)) }
func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// ingressQueue is the multi-producer/single-consumer priority buffer
// of spec.md §4.1. Growth is unbounded — cachedRequests only sizes the
// initial backing array — so a producer's Push never blocks, which is
// what keeps it safe to call from Submit without risking deadlock
// against Stop's drain (spec.md §5).
type ingressQueue struct {
	mu     sync.Mutex
	h      requestHeap
	signal chan struct{}
}

func newIngressQueue(cachedRequests int) *ingressQueue {
	return &ingressQueue{
		h:      make(requestHeap, 0, cachedRequests),
		signal: make(chan struct{}, 1),
	}
}

func (q *ingressQueue) Push(r *pendingRequest) {
	q.mu.Lock()
	heap.Push(&q.h, r)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Take blocks until a request is available or ctx is cancelled.
func (q *ingressQueue) Take(ctx context.Context) (*pendingRequest, error) {
	for {
		q.mu.Lock()
		if len(q.h) > 0 {
			item := heap.Pop(&q.h).(*pendingRequest)
			q.mu.Unlock()
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *ingressQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

func (q *ingressQueue) Empty() bool {
	return q.Size() == 0
}
