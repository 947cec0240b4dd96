package follower

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/joyqueue/journalkeeper/journal"
	"github.com/joyqueue/journalkeeper/membership"
	"github.com/joyqueue/journalkeeper/metrics"
	"github.com/joyqueue/journalkeeper/threads"
)

// drainPollInterval is the busy-wait sleep spec.md §4.4/§9 uses for
// the stop-drain loop. A condition variable signalled on queue-empty
// is noted there as preferable; this module keeps the poll to stay
// observably identical to the source.
const drainPollInterval = 50 * time.Millisecond

// stateMachineThreadSuffix names the external applier thread the
// follower wakes by name but never owns (spec.md §6).
const (
	replicationHandlerThreadSuffix = "-voter-replication-handler"
	stateMachineThreadSuffix       = "-state-machine"
)

// Follower is the passive-replica core: spec.md §2's ingress queue,
// handler loop, config reconciler, and lifecycle controller, wired
// together.
type Follower struct {
	journal     journal.Journal
	snapshots   journal.SnapshotMap
	configState *membership.ConfigState
	reconciler  *membership.Reconciler
	threads     threads.Registry
	metrics     *metrics.Sink
	logger      *log.Logger

	serverURI   string
	currentTerm int

	leaderMaxIndex atomic.Int64
	readyForPLE    atomic.Bool

	queue *ingressQueue
	lc    lifecycle
}

// New constructs a Follower. The first eight parameters follow spec.md
// §6: journal, membership state, server URI, current term, membership
// reconciler, thread registry, snapshot map, and the ingress queue's
// initial capacity hint. They are followed by an optional metrics sink
// (nil disables metrics) and a logger (nil means log.Default()).
func New(
	j journal.Journal,
	state *membership.ConfigState,
	serverURI string,
	currentTerm int,
	reconciler *membership.Reconciler,
	registry threads.Registry,
	snapshots journal.SnapshotMap,
	cachedRequests int,
	metricsSink *metrics.Sink,
	logger *log.Logger,
) *Follower {
	if logger == nil {
		logger = log.Default()
	}
	f := &Follower{
		journal:     j,
		snapshots:   snapshots,
		configState: state,
		reconciler:  reconciler,
		threads:     registry,
		metrics:     metricsSink,
		logger:      logger,
		serverURI:   serverURI,
		currentTerm: currentTerm,
		queue:       newIngressQueue(cachedRequests),
	}
	f.leaderMaxIndex.Store(-1)
	f.lc.set(Created)
	return f
}

func (f *Follower) replicationHandlerThreadName() string {
	return f.serverURI + replicationHandlerThreadSuffix
}

func (f *Follower) stateMachineThreadName() string {
	return f.serverURI + stateMachineThreadSuffix
}

// Submit is the follower's sole inbound operation (spec.md §4.1/§6).
// If the follower isn't RUNNING, the returned Completion is already
// fulfilled with an IllegalState/LifecycleRefused failure and nothing
// is enqueued.
func (f *Follower) Submit(req AppendEntriesRequest) *Completion {
	completion := newCompletion()

	if f.lc.get() != Running {
		state := f.lc.get()
		completion.Complete(AppendEntriesResponse{
			Err: newError(KindLifecycleRefused, fmt.Errorf("follower not running: state=%s", state)),
		})
		return completion
	}

	f.queue.Push(&pendingRequest{
		id:         uuid.New(),
		request:    req,
		completion: completion,
	})
	if f.metrics != nil {
		f.metrics.SetGauge([]string{"follower", "replication", "queue_size"}, float32(f.queue.Size()))
	}
	return completion
}

// Start builds and starts the handler-loop daemon thread and
// transitions to RUNNING (spec.md §4.4).
func (f *Follower) Start() {
	f.threads.CreateThread(threads.Descriptor{
		Name: f.replicationHandlerThreadName(),
		Work: f.runHandlerLoop,
	})
	_ = f.threads.StartThread(f.replicationHandlerThreadName())
	f.lc.set(Running)
}

// Stop transitions to STOPPING, refusing new submissions, then blocks
// until every already-accepted request has completed before stopping
// the worker and transitioning to STOPPED (spec.md §4.4).
func (f *Follower) Stop() {
	f.lc.set(Stopping)

	for !f.queue.Empty() {
		time.Sleep(drainPollInterval)
	}

	_ = f.threads.StopThread(f.replicationHandlerThreadName())
	_ = f.threads.RemoveThread(f.replicationHandlerThreadName())
	f.lc.set(Stopped)
}

// LifecycleState reports the follower's current state.
func (f *Follower) LifecycleState() LifecycleState { return f.lc.get() }

func (f *Follower) runHandlerLoop(ctx context.Context, _ <-chan struct{}) {
	for {
		item, err := f.queue.Take(ctx)
		if err != nil {
			// Interrupted: surfaced as lifecycle shutdown (spec.md §7).
			return
		}
		f.handleOne(item)
	}
}

// LeaderMaxIndex returns the highest leader tail observed so far.
func (f *Follower) LeaderMaxIndex() int64 { return f.leaderMaxIndex.Load() }

// ReplicationQueueSize returns the number of pending requests.
func (f *Follower) ReplicationQueueSize() int { return f.queue.Size() }

// ReadyForPreferredLeaderElection reports the preferred-leader-election
// readiness latch (spec.md §4.5). It is informational only; the
// follower does not act on it.
func (f *Follower) ReadyForPreferredLeaderElection() bool { return f.readyForPLE.Load() }

// SetReadyForPreferredLeaderElection sets the latch, written by the
// surrounding server.
func (f *Follower) SetReadyForPreferredLeaderElection(ready bool) { f.readyForPLE.Store(ready) }

// debugString reproduces the original's voterInfo() diagnostic line,
// used only in warn-level error logging.
func (f *Follower) debugString() string {
	return fmt.Sprintf(
		"currentTerm: %d, minIndex: %d, maxIndex: %d, commitIndex: %d, uri: %s",
		f.currentTerm, f.journal.MinIndex(), f.journal.MaxIndex(), f.journal.CommitIndex(), f.serverURI,
	)
}
