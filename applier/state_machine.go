package applier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joyqueue/journalkeeper/journal"
)

// StateMachine applies a single decoded command — grounded on the
// teacher's StateMachine interface (state_machine.go).
type StateMachine interface {
	Apply(cmd []byte) ([]byte, error)
}

// CommittedSource is the narrow slice of journal.Journal the applier
// actually needs: it reads committed entries, it never writes. The
// follower and the applier never share a direct handle to each other —
// the follower only calls threads.Registry.WakeupThread by name
// (spec.md §9, "applier wakeup by name").
type CommittedSource interface {
	MinIndex() int64
	CommitIndex() int64
	EntriesFrom(from int64) []journal.Entry
}

// KVStateMachine is the reference in-memory key-value applier.
type KVStateMachine struct {
	mu          sync.RWMutex
	db          map[string]string
	lastApplied atomic.Int64
	source      CommittedSource
}

func NewKVStateMachine(source CommittedSource) *KVStateMachine {
	return &KVStateMachine{db: make(map[string]string), source: source}
}

func (sm *KVStateMachine) Apply(msg []byte) ([]byte, error) {
	cmd, err := decodeCommand(msg)
	if err != nil {
		return nil, err
	}

	switch cmd.kind {
	case cmdSet:
		sm.mu.Lock()
		sm.db[cmd.key] = cmd.value
		sm.mu.Unlock()
		return nil, nil
	case cmdGet:
		sm.mu.RLock()
		value, ok := sm.db[cmd.key]
		sm.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("applier: key not found: %s", cmd.key)
		}
		return []byte(value), nil
	default:
		return nil, fmt.Errorf("applier: unknown command kind %d", cmd.kind)
	}
}

// LastApplied returns the highest journal index applied so far.
func (sm *KVStateMachine) LastApplied() int64 { return sm.lastApplied.Load() }

// Run is the applier's daemon work function: it drains every entry
// between lastApplied and CommitIndex() each time it's woken, and is
// registered under thread name "<server_uri>-state-machine" — the
// only thing the follower knows about it.
func (sm *KVStateMachine) Run(ctx context.Context, wake <-chan struct{}) {
	sm.drain()
	for {
		select {
		case <-wake:
			sm.drain()
		case <-ctx.Done():
			return
		}
	}
}

func (sm *KVStateMachine) drain() {
	for {
		from := sm.lastApplied.Load()
		if min := sm.source.MinIndex(); min > from {
			// the gap below min has been compacted away; nothing to replay.
			from = min
		}
		commit := sm.source.CommitIndex()
		if from >= commit {
			return
		}
		entries := sm.source.EntriesFrom(from)
		if len(entries) == 0 {
			return
		}
		for i, e := range entries {
			idx := from + int64(i)
			if idx >= commit {
				break
			}
			if !e.IsConfig {
				_, _ = sm.Apply(e.Data)
			}
			sm.lastApplied.Store(idx + 1)
		}
	}
}
