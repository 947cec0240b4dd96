package follower

import (
	"errors"
	"time"

	"github.com/joyqueue/journalkeeper/journal"
)

// handleOne runs the follower's half of AppendEntries (spec.md §4.2,
// steps A-E) for a single dequeued request, and fulfills its
// completion exactly once. Grounded on raft-server/server_handler.go's
// HandleAppendEntries, restructured to operate off the ingress queue
// instead of synchronously under the server's own lock — the handler
// loop is already the journal's sole writer, so no additional locking
// is needed here (spec.md §9, "single-writer discipline").
func (f *Follower) handleOne(item *pendingRequest) {
	start := time.Now()
	if f.metrics != nil {
		defer f.metrics.MeasureSince([]string{"follower", "replication", "handle"}, start)
	}

	req := item.request
	p := req.PrevLogIndex
	t := req.PrevLogTerm

	// Step A: validate prefix. The bounds checks must short-circuit
	// before termProbe is ever called, exactly like the source's
	// prevLogIndex < minIndex-1 || prevLogIndex >= maxIndex || getTerm(...) != prevLogTerm:
	// termProbe is only well-defined for p in [MinIndex-1, MaxIndex), and
	// calling it outside that window turns an ordinary out-of-window
	// rejection into a spurious index-underflow error.
	if p < f.journal.MinIndex()-1 || p >= f.journal.MaxIndex() {
		item.completion.Complete(AppendEntriesResponse{
			Success:      false,
			JournalIndex: p + 1,
			Term:         f.currentTerm,
			EntryCount:   len(req.Entries),
		})
		return
	}

	probeTerm, err := f.termProbe(p)
	if err != nil {
		if errors.Is(err, journal.ErrIndexUnderflow) {
			f.logger.Printf("follower: request=%s fatal index underflow probing prevLogIndex=%d, %s: %v", item.id, p, f.debugString(), err)
			item.completion.Complete(AppendEntriesResponse{Err: newError(KindIndexUnderflow, err)})
			return
		}
		f.logger.Printf("follower: request=%s error probing prevLogIndex=%d, %s: %v", item.id, p, f.debugString(), err)
		item.completion.Complete(AppendEntriesResponse{Err: newError(KindJournalIO, err)})
		return
	}

	if probeTerm != t {
		// Protocol-level rejection: not an error (spec.md §7).
		item.completion.Complete(AppendEntriesResponse{
			Success:      false,
			JournalIndex: p + 1,
			Term:         f.currentTerm,
			EntryCount:   len(req.Entries),
		})
		return
	}

	// Step B: reconcile and append.
	if len(req.Entries) > 0 {
		startIndex := p + 1

		if err := f.reconciler.MaybeRollbackConfig(startIndex, f.journal, f.configState); err != nil {
			f.logger.Printf("follower: request=%s config rollback failed at start=%d, term=%d, leader=%s, prevLogIndex=%d, prevLogTerm=%d, entries=%d, leaderCommit=%d, %s: %v",
				item.id, startIndex, req.Term, req.Leader, req.PrevLogIndex, req.PrevLogTerm, len(req.Entries), req.LeaderCommit, f.debugString(), err)
			item.completion.Complete(AppendEntriesResponse{Err: newError(KindConfigRollbackFailure, err)})
			return
		}

		if err := f.journal.CompareOrAppend(req.Entries, startIndex); err != nil {
			f.logger.Printf("follower: request=%s journal append failed at start=%d, term=%d, leader=%s, prevLogIndex=%d, prevLogTerm=%d, entries=%d, leaderCommit=%d, %s: %v",
				item.id, startIndex, req.Term, req.Leader, req.PrevLogIndex, req.PrevLogTerm, len(req.Entries), req.LeaderCommit, f.debugString(), err)
			item.completion.Complete(AppendEntriesResponse{Err: newError(KindJournalIO, err)})
			return
		}

		if err := f.reconciler.MaybeUpdateNonLeaderConfig(req.Entries, f.configState); err != nil {
			f.logger.Printf("follower: request=%s config apply failed at start=%d, %s: %v", item.id, startIndex, f.debugString(), err)
			item.completion.Complete(AppendEntriesResponse{Err: newError(KindConfigRollbackFailure, err)})
			return
		}
	}

	// Step C: advance commit.
	if req.LeaderCommit > f.journal.CommitIndex() {
		upTo := req.LeaderCommit
		if max := f.journal.MaxIndex(); upTo > max {
			upTo = max
		}
		if err := f.journal.Commit(upTo); err != nil {
			f.logger.Printf("follower: request=%s commit to %d failed, %s: %v", item.id, upTo, f.debugString(), err)
			item.completion.Complete(AppendEntriesResponse{Err: newError(KindJournalIO, err)})
			return
		}
		f.threads.WakeupThread(f.stateMachineThreadName())
		if f.metrics != nil {
			f.metrics.IncrCounter([]string{"follower", "replication", "commit_advance"}, 1)
		}
	}

	// Step D: track leader tail.
	if req.LeaderMaxIndex > f.leaderMaxIndex.Load() {
		f.leaderMaxIndex.Store(req.LeaderMaxIndex)
	}

	// Step E: respond.
	item.completion.Complete(AppendEntriesResponse{
		Success:      true,
		JournalIndex: p + 1,
		Term:         f.currentTerm,
		EntryCount:   len(req.Entries),
	})
}

// termProbe returns TermAt(index), except that when the journal
// raises ErrIndexUnderflow and index+1 equals the first snapshot's
// boundary index, it returns that snapshot's LastIncludedTerm instead
// (spec.md §4.2). Any other underflow propagates as a fatal error.
func (f *Follower) termProbe(index int64) (int, error) {
	term, err := f.journal.TermAt(index)
	if err == nil {
		return term, nil
	}
	if !errors.Is(err, journal.ErrIndexUnderflow) {
		return 0, err
	}

	boundary, snap, ok := f.snapshots.FirstEntry()
	if ok && index+1 == boundary {
		return snap.LastIncludedTerm(), nil
	}
	return 0, err
}
