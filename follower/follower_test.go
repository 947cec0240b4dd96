package follower

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joyqueue/journalkeeper/journal"
	"github.com/joyqueue/journalkeeper/membership"
	"github.com/joyqueue/journalkeeper/threads"
)

func newTestFollower(t *testing.T) (*Follower, *journal.MemJournal, *journal.MemSnapshotMap) {
	t.Helper()
	j := journal.NewMemJournal()
	snaps := journal.NewMemSnapshotMap()
	state := membership.NewConfigState([]string{"follower-1", "follower-2"})
	f := New(j, state, "follower-1", 1, membership.NewReconciler(), threads.NewInMemRegistry(), snaps, 16, nil, nil)
	f.Start()
	t.Cleanup(f.Stop)
	return f, j, snaps
}

func submitAndWait(t *testing.T, f *Follower, req AppendEntriesRequest) AppendEntriesResponse {
	t.Helper()
	completion := f.Submit(req)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := completion.Wait(ctx)
	require.NoError(t, err)
	return resp
}

// TestFollower_HeartbeatAgainstEmptyJournalIsAccepted drives scenario 1
// from spec.md §8: a heartbeat whose prevLogIndex sits at the virgin
// journal's implicit prefix is accepted.
func TestFollower_HeartbeatAgainstEmptyJournalIsAccepted(t *testing.T) {
	f, _, _ := newTestFollower(t)

	resp := submitAndWait(t, f, AppendEntriesRequest{
		Term:         1,
		Leader:       "leader-1",
		PrevLogIndex: -1,
		PrevLogTerm:  0,
	})

	require.True(t, resp.Success)
	require.Equal(t, int64(0), resp.JournalIndex)
	require.Equal(t, 0, resp.EntryCount)
	require.Nil(t, resp.Err)
}

// TestFollower_PrefixMismatchIsRejectedNotErrored drives scenario 2: a
// prevLogTerm that disagrees with what's on the journal is a protocol
// rejection, not a FollowerError.
func TestFollower_PrefixMismatchIsRejectedNotErrored(t *testing.T) {
	f, _, _ := newTestFollower(t)

	submitAndWait(t, f, AppendEntriesRequest{
		Term: 1, PrevLogIndex: -1, PrevLogTerm: 0,
		Entries: []journal.Entry{{Term: 1}},
	})

	resp := submitAndWait(t, f, AppendEntriesRequest{
		Term:         1,
		PrevLogIndex: 0,
		PrevLogTerm:  99, // disagrees with the term 1 entry actually at index 0
	})

	require.False(t, resp.Success)
	require.Nil(t, resp.Err)
}

// TestFollower_TruncatesConflictingSuffixAndRollsBackConfig drives
// scenario 3: an uncommitted config entry in the truncated tail must be
// rolled back before the new suffix is appended.
func TestFollower_TruncatesConflictingSuffixAndRollsBackConfig(t *testing.T) {
	f, j, _ := newTestFollower(t)

	resp := submitAndWait(t, f, AppendEntriesRequest{
		Term: 1, PrevLogIndex: -1, PrevLogTerm: 0,
		Entries: []journal.Entry{
			{Term: 1},
			membership.NewConfigEntry(1, []string{"follower-1", "follower-2", "follower-3"}),
		},
	})
	require.True(t, resp.Success)
	require.Len(t, f.configState.Peers(), 3)

	resp = submitAndWait(t, f, AppendEntriesRequest{
		Term:         2,
		PrevLogIndex: 0,
		PrevLogTerm:  1,
		Entries:      []journal.Entry{{Term: 2}},
	})
	require.True(t, resp.Success)

	require.Equal(t, []string{"follower-1", "follower-2"}, f.configState.Peers())
	require.Equal(t, int64(2), j.MaxIndex())
}

// TestFollower_PrevLogIndexAtOrBeyondMaxIndexIsRejectedNotErrored
// covers a lagging/fresh follower's first contact with an established
// leader: prevLogIndex >= MaxIndex must short-circuit to a protocol
// rejection with journal_index = prevLogIndex + 1 before ever probing
// a term, so the leader can back up nextIndex. Probing first would
// drive TermAt into ErrIndexUnderflow and surface as an error
// response instead.
func TestFollower_PrevLogIndexAtOrBeyondMaxIndexIsRejectedNotErrored(t *testing.T) {
	f, _, _ := newTestFollower(t)

	resp := submitAndWait(t, f, AppendEntriesRequest{
		Term:         5,
		PrevLogIndex: 41, // far beyond MaxIndex() == 0 on a virgin journal
		PrevLogTerm:  3,
	})

	require.False(t, resp.Success)
	require.Nil(t, resp.Err)
	require.Equal(t, int64(42), resp.JournalIndex)
}

// TestFollower_PrevLogIndexBelowMinIndexMinusOneIsRejectedNotErrored
// covers the symmetric case: prevLogIndex below a compacted floor's
// MinIndex-1 must also short-circuit before termProbe.
func TestFollower_PrevLogIndexBelowMinIndexMinusOneIsRejectedNotErrored(t *testing.T) {
	f, j, _ := newTestFollower(t)

	require.NoError(t, j.CompareOrAppend([]journal.Entry{{Term: 1}, {Term: 1}, {Term: 2}}, 0))
	require.NoError(t, j.Commit(3))
	_, err := j.Compact(2)
	require.NoError(t, err)

	resp := submitAndWait(t, f, AppendEntriesRequest{
		Term:         5,
		PrevLogIndex: 0, // below MinIndex()-1 == 1 after compaction to floor 2
		PrevLogTerm:  1,
	})

	require.False(t, resp.Success)
	require.Nil(t, resp.Err)
	require.Equal(t, int64(1), resp.JournalIndex)
}

// TestFollower_SnapshotBoundaryTermProbe drives scenario 4: a compacted
// journal still answers a term probe at its snapshot boundary.
func TestFollower_SnapshotBoundaryTermProbe(t *testing.T) {
	f, j, snaps := newTestFollower(t)

	require.NoError(t, j.CompareOrAppend([]journal.Entry{{Term: 1}, {Term: 1}, {Term: 2}}, 0))
	require.NoError(t, j.Commit(3))
	lastIncludedTerm, err := j.Compact(2)
	require.NoError(t, err)
	snaps.Put(2, lastIncludedTerm)

	resp := submitAndWait(t, f, AppendEntriesRequest{
		Term:         2,
		PrevLogIndex: 1,
		PrevLogTerm:  1,
		Entries:      []journal.Entry{{Term: 2}},
	})

	require.True(t, resp.Success)
	require.Nil(t, resp.Err)
}

// TestFollower_IdempotentResubmission drives the idempotence scenario:
// completing the same logical request twice never double-applies it,
// because each Submit gets its own Completion and the journal's
// CompareOrAppend is itself idempotent against an already-matching
// suffix.
func TestFollower_IdempotentResubmission(t *testing.T) {
	f, j, _ := newTestFollower(t)

	req := AppendEntriesRequest{
		Term: 1, PrevLogIndex: -1, PrevLogTerm: 0,
		Entries: []journal.Entry{{Term: 1}},
	}

	first := submitAndWait(t, f, req)
	second := submitAndWait(t, f, req)

	require.True(t, first.Success)
	require.True(t, second.Success)
	require.Equal(t, int64(1), j.MaxIndex())
}

// TestFollower_SubmitWhileNotRunningRefusesImmediately covers the
// lifecycle-refusal path: a follower that has never been started
// fulfils the completion synchronously with a LifecycleRefused error.
func TestFollower_SubmitWhileNotRunningRefusesImmediately(t *testing.T) {
	j := journal.NewMemJournal()
	state := membership.NewConfigState(nil)
	f := New(j, state, "follower-1", 1, membership.NewReconciler(), threads.NewInMemRegistry(), journal.NewMemSnapshotMap(), 16, nil, nil)

	completion := f.Submit(AppendEntriesRequest{PrevLogIndex: -1})
	require.True(t, completion.Done())

	resp, err := completion.Wait(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp.Err)

	var ferr *FollowerError
	require.True(t, errors.As(resp.Err, &ferr))
	require.Equal(t, KindLifecycleRefused, ferr.Kind)
}
