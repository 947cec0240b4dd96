package journal

import "sort"

// Snapshot is the read-only handle the follower consults: only
// LastIncludedTerm is ever read, and only for the boundary index
// immediately below the live journal's floor.
type Snapshot interface {
	LastIncludedTerm() int
}

type memSnapshot struct {
	lastIncludedTerm int
}

func (s memSnapshot) LastIncludedTerm() int { return s.lastIncludedTerm }

// SnapshotMap is the ordered, read-only map from boundary index to
// snapshot handle the follower's term probe falls back to.
type SnapshotMap interface {
	FirstKey() (int64, bool)
	FirstEntry() (int64, Snapshot, bool)
}

// MemSnapshotMap is a simple in-memory reference implementation, kept
// sorted by boundary index.
type MemSnapshotMap struct {
	boundaries []int64
	byBoundary map[int64]Snapshot
}

func NewMemSnapshotMap() *MemSnapshotMap {
	return &MemSnapshotMap{byBoundary: make(map[int64]Snapshot)}
}

// Put records a snapshot whose boundary is the index one past the
// last entry it includes (i.e. the journal's new MinIndex after the
// corresponding Compact call).
func (m *MemSnapshotMap) Put(boundary int64, lastIncludedTerm int) {
	if _, exists := m.byBoundary[boundary]; !exists {
		m.boundaries = append(m.boundaries, boundary)
		sort.Slice(m.boundaries, func(i, j int) bool { return m.boundaries[i] < m.boundaries[j] })
	}
	m.byBoundary[boundary] = memSnapshot{lastIncludedTerm: lastIncludedTerm}
}

func (m *MemSnapshotMap) FirstKey() (int64, bool) {
	if len(m.boundaries) == 0 {
		return 0, false
	}
	return m.boundaries[0], true
}

func (m *MemSnapshotMap) FirstEntry() (int64, Snapshot, bool) {
	k, ok := m.FirstKey()
	if !ok {
		return 0, nil, false
	}
	return k, m.byBoundary[k], true
}
