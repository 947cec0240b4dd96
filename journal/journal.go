// Package journal defines the append-only, index-addressed log the
// follower validates and mutates, and a reference in-memory
// implementation of it.
package journal

import (
	"errors"
	"fmt"
	"sync"
)

// ErrIndexUnderflow is raised by TermAt when the requested index has
// already been compacted below the journal's live floor. The caller
// (follower.termProbe) is responsible for checking whether the index
// lands exactly on the first snapshot boundary before treating this
// as fatal.
var ErrIndexUnderflow = errors.New("journal: index underflow")

// ErrTruncateBelowCommit is raised by CompareOrAppend if it would have
// to remove an already-committed entry. compareOrAppend must never do
// this; a caller that hits it has a logic bug upstream.
var ErrTruncateBelowCommit = errors.New("journal: refused to truncate committed entries")

// Entry is an opaque log entry: the follower only ever inspects Term
// and IsConfig, never Data.
type Entry struct {
	Term     int
	Data     []byte
	IsConfig bool
}

// Journal is the external, read/write log interface the follower
// validates and mutates. Implementations must make CompareOrAppend and
// Commit atomic with respect to observable indices: a failed call must
// never leave MinIndex/MaxIndex/CommitIndex/TermAt in a partially
// mutated state.
type Journal interface {
	MinIndex() int64
	MaxIndex() int64
	CommitIndex() int64
	TermAt(index int64) (int, error)
	// EntryAt returns the full entry at index, for collaborators (the
	// membership reconciler) that need to inspect payloads the
	// follower itself never decodes.
	EntryAt(index int64) (Entry, error)
	// CompareOrAppend walks entries and the existing journal positions
	// from startIndex; at the first index where the existing entry's
	// term differs from the incoming one, or no entry exists, it
	// truncates to that index and appends the remaining suffix. It is
	// a no-op if entries already match what's on the journal.
	CompareOrAppend(entries []Entry, startIndex int64) error
	Commit(upTo int64) error
}

// MemJournal is a reference, in-memory Journal. It never compacts on
// its own; MinIndex only advances when Compact is called explicitly by
// an owner outside the follower (e.g. a snapshot installer).
type MemJournal struct {
	mu          sync.RWMutex
	floor       int64 // MinIndex(); entries below this have been compacted away
	entries     []Entry
	commitIndex int64
}

// NewMemJournal returns an empty journal starting at index 0.
func NewMemJournal() *MemJournal {
	return &MemJournal{}
}

func (j *MemJournal) MinIndex() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.floor
}

func (j *MemJournal) MaxIndex() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.floor + int64(len(j.entries))
}

func (j *MemJournal) CommitIndex() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.commitIndex
}

func (j *MemJournal) TermAt(index int64) (int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.termAtLocked(index)
}

func (j *MemJournal) EntryAt(index int64) (Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if index < j.floor || index >= j.floor+int64(len(j.entries)) {
		return Entry{}, fmt.Errorf("%w: index %d, floor %d, max %d", ErrIndexUnderflow, index, j.floor, j.floor+int64(len(j.entries)))
	}
	return j.entries[index-j.floor], nil
}

func (j *MemJournal) termAtLocked(index int64) (int, error) {
	if index == j.floor-1 && j.floor == 0 {
		// Nothing has ever been compacted: index -1 is the implicit
		// "before the first entry" root, term 0 by convention.
		return 0, nil
	}
	if index < j.floor || index >= j.floor+int64(len(j.entries)) {
		return 0, fmt.Errorf("%w: index %d, floor %d, max %d", ErrIndexUnderflow, index, j.floor, j.floor+int64(len(j.entries)))
	}
	return j.entries[index-j.floor].Term, nil
}

func (j *MemJournal) CompareOrAppend(entries []Entry, startIndex int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}

	truncateAt := int64(-1)
	localMax := j.floor + int64(len(j.entries))
	for i, e := range entries {
		idx := startIndex + int64(i)
		if idx < localMax {
			existing := j.entries[idx-j.floor]
			if existing.Term != e.Term {
				truncateAt = idx
				break
			}
			// entry already matches, nothing to do for this index
			continue
		}
		truncateAt = idx
		break
	}

	if truncateAt < 0 {
		// every incoming entry already matches the journal
		return nil
	}

	if truncateAt < j.commitIndex {
		return fmt.Errorf("%w: truncate at %d, commit %d", ErrTruncateBelowCommit, truncateAt, j.commitIndex)
	}

	j.entries = j.entries[:truncateAt-j.floor]
	for i := truncateAt - startIndex; i < int64(len(entries)); i++ {
		j.entries = append(j.entries, entries[i])
	}
	return nil
}

func (j *MemJournal) Commit(upTo int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	max := j.floor + int64(len(j.entries))
	if upTo > max {
		upTo = max
	}
	if upTo > j.commitIndex {
		j.commitIndex = upTo
	}
	return nil
}

// EntriesFrom returns a copy of the entries in [from, MaxIndex()), for
// use by an external applier. It is not part of the Journal interface
// the follower consumes.
func (j *MemJournal) EntriesFrom(from int64) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if from < j.floor {
		from = j.floor
	}
	max := j.floor + int64(len(j.entries))
	if from >= max {
		return nil
	}
	out := make([]Entry, max-from)
	copy(out, j.entries[from-j.floor:])
	return out
}

// Compact discards entries below upTo and returns the term of the last
// discarded entry (lastIncludedTerm), so a follow-up SnapshotMap entry
// can serve term probes at the new MinIndex()-1. It is never called by the follower
// itself — only by an external snapshot installer.
func (j *MemJournal) Compact(upTo int64) (lastIncludedTerm int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if upTo <= j.floor {
		return 0, fmt.Errorf("journal: compact target %d not past floor %d", upTo, j.floor)
	}
	term, err := j.termAtLocked(upTo - 1)
	if err != nil {
		return 0, err
	}
	j.entries = j.entries[upTo-j.floor:]
	j.floor = upTo
	return term, nil
}
