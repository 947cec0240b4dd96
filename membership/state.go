// Package membership owns the follower's in-memory view of cluster
// membership and the rollback/apply logic the replication handler
// loop drives. It performs no I/O; it only mutates a ConfigState
// consulted by membership queries, exactly as spec.md §4.3 describes
// the "config reconciler" collaborator.
//
// Grounded on the teacher's leaderState (nextIndex/matchIndex maps)
// for "config as in-memory server state" and on state-machine/command.go
// for "decode a small binary command format" — generalized here to a
// peer-set change instead of a key/value command.
package membership

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tchajed/marshal"

	"github.com/joyqueue/journalkeeper/journal"
)

// ConfigState is the live, in-memory cluster membership plus the
// single rollback slot invariant 5 (spec.md §3) relies on: at most one
// uncommitted configuration change may be pending, so one previous
// snapshot of the peer set is all that's ever needed.
type ConfigState struct {
	mu       sync.RWMutex
	peers    []string
	previous []string // nil when there is no pending (uncommitted) change to roll back
	hasPrev  bool
}

func NewConfigState(initialPeers []string) *ConfigState {
	peers := append([]string(nil), initialPeers...)
	sort.Strings(peers)
	return &ConfigState{peers: peers}
}

// Peers returns a snapshot of the current membership.
func (c *ConfigState) Peers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.peers...)
}

func (c *ConfigState) apply(peers []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.previous = c.peers
	c.hasPrev = true
	c.peers = append([]string(nil), peers...)
}

func (c *ConfigState) rollback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasPrev {
		return
	}
	c.peers = c.previous
	c.previous = nil
	c.hasPrev = false
}

// HasPendingChange reports whether a config change has been applied
// and not rolled back since. A later apply keeps it true; nothing
// clears it when the change commits. Used by tests to assert
// invariant 5.
func (c *ConfigState) HasPendingChange() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasPrev
}

// Change is the decoded payload of a config entry: the full new peer
// set, replicated on the wire as journal.Entry.Data.
type Change struct {
	Peers []string
}

// EncodeChange serializes a Change the way state-machine/command.go
// serializes a command: a length-prefixed field per member.
func EncodeChange(c Change) []byte {
	buf := make([]byte, 0, 8+32*len(c.Peers))
	buf = marshal.WriteInt(buf, uint64(len(c.Peers)))
	for _, p := range c.Peers {
		buf = marshal.WriteInt(buf, uint64(len(p)))
		buf = marshal.WriteBytes(buf, []byte(p))
	}
	return buf
}

// DecodeChange is EncodeChange's inverse.
func DecodeChange(data []byte) (Change, error) {
	if len(data) < 8 {
		return Change{}, fmt.Errorf("membership: change payload too short: %d bytes", len(data))
	}
	count, rest := marshal.ReadInt(data)
	peers := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(rest) < 8 {
			return Change{}, fmt.Errorf("membership: truncated change payload")
		}
		var plen uint64
		plen, rest = marshal.ReadInt(rest)
		var pbytes []byte
		pbytes, rest = marshal.ReadBytesCopy(rest, plen)
		peers = append(peers, string(pbytes))
	}
	return Change{Peers: peers}, nil
}

// NewConfigEntry builds the journal.Entry a leader would replicate for
// a membership change. The follower never constructs these itself —
// this helper is used by tests.
func NewConfigEntry(term int, peers []string) journal.Entry {
	return journal.Entry{Term: term, Data: EncodeChange(Change{Peers: peers}), IsConfig: true}
}
