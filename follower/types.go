// Package follower implements the passive-replica half of a Raft-style
// replicated log server: it validates, reconciles, and applies
// append-entries batches from a leader, advances the commit point, and
// applies/rolls back membership changes found in the stream.
//
// Grounded on raft-server/server_handler.go's HandleAppendEntries
// (the validate/reconcile/commit decision) and raft-server/server.go's
// goroutine lifecycle, restructured around an ingress queue and a
// single handler-loop goroutine per io.journalkeeper's original
// Follower.java (original_source/journalkeeper-core/.../Follower.java).
package follower

import "github.com/joyqueue/journalkeeper/journal"

// AppendEntriesRequest is the follower's inbound operation payload
// (spec.md §6).
type AppendEntriesRequest struct {
	Term           int
	Leader         string
	PrevLogIndex   int64
	PrevLogTerm    int
	Entries        []journal.Entry
	LeaderCommit   int64
	LeaderMaxIndex int64
}

// AppendEntriesResponse is the follower's outbound response. Err is
// non-nil only for the unexpected-failure path (spec.md §7); a
// protocol-level rejection is Success=false with Err nil.
type AppendEntriesResponse struct {
	Success      bool
	JournalIndex int64
	Term         int
	EntryCount   int
	Err          error
}

// ErrorKind classifies the unexpected-failure responses spec.md §7
// distinguishes from a normal protocol rejection.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindIndexUnderflow
	KindJournalIO
	KindConfigRollbackFailure
	KindLifecycleRefused
)

func (k ErrorKind) String() string {
	switch k {
	case KindIndexUnderflow:
		return "IndexUnderflow"
	case KindJournalIO:
		return "JournalIO"
	case KindConfigRollbackFailure:
		return "ConfigRollbackFailure"
	case KindLifecycleRefused:
		return "LifecycleRefused"
	default:
		return "None"
	}
}

// FollowerError wraps an unexpected failure with the error kind that
// classifies it, for logging and for callers that want to branch on
// the kind rather than string-match the cause.
type FollowerError struct {
	Kind  ErrorKind
	Cause error
}

func (e *FollowerError) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Cause.Error()
}

func (e *FollowerError) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, cause error) *FollowerError {
	return &FollowerError{Kind: kind, Cause: cause}
}
