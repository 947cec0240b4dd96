package membership

import (
	"fmt"

	"github.com/joyqueue/journalkeeper/journal"
)

// Reconciler is the follower's "config reconciler" collaborator
// (spec.md §4.3). It performs no I/O; MaybeRollbackConfig inspects the
// journal it's handed (read-only) and mutates ConfigState in memory.
type Reconciler struct{}

func NewReconciler() *Reconciler { return &Reconciler{} }

// MaybeRollbackConfig inspects [max(startIndex, j.CommitIndex()), j.MaxIndex())
// for a config entry; if one is found, state is rolled back one step.
// The follower guarantees at most one uncommitted config change, so a
// single rollback step is always sufficient (spec.md §4.3).
func (r *Reconciler) MaybeRollbackConfig(startIndex int64, j journal.Journal, state *ConfigState) error {
	from := startIndex
	if ci := j.CommitIndex(); ci > from {
		from = ci
	}

	for i := from; i < j.MaxIndex(); i++ {
		entry, err := j.EntryAt(i)
		if err != nil {
			return fmt.Errorf("membership: rollback scan at index %d: %w", i, err)
		}
		if entry.IsConfig {
			state.rollback()
			return nil
		}
	}
	return nil
}

// MaybeUpdateNonLeaderConfig applies, in order, every config entry in
// entries to state — followers apply membership changes on
// replication, not on commit (spec.md §9).
func (r *Reconciler) MaybeUpdateNonLeaderConfig(entries []journal.Entry, state *ConfigState) error {
	for _, e := range entries {
		if !e.IsConfig {
			continue
		}
		change, err := DecodeChange(e.Data)
		if err != nil {
			return fmt.Errorf("membership: apply config entry: %w", err)
		}
		state.apply(change.Peers)
	}
	return nil
}
