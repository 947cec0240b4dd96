package journal

import (
	"fmt"
	"io"

	"github.com/tchajed/marshal"
)

// Persist encodes the full journal state as a single buffer and writes
// it to w. Like the teacher's state.go persist(), this rewrites the
// whole file every call rather than appending incrementally — the
// follower itself never calls this; it exists so a demo process can
// survive a restart.
func (j *MemJournal) Persist(w io.Writer) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	buf := make([]byte, 0, 24+64*len(j.entries))
	buf = marshal.WriteInt(buf, uint64(j.floor))
	buf = marshal.WriteInt(buf, uint64(j.commitIndex))
	buf = marshal.WriteInt(buf, uint64(len(j.entries)))

	for _, e := range j.entries {
		buf = marshal.WriteInt(buf, uint64(e.Term))
		buf = marshal.WriteInt(buf, boolToU64(e.IsConfig))
		buf = marshal.WriteInt(buf, uint64(len(e.Data)))
		buf = marshal.WriteBytes(buf, e.Data)
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("journal: persist: %w", err)
	}
	return nil
}

// Restore replaces the journal's contents with what was previously
// written by Persist. It is the caller's responsibility to rewind the
// backing file first.
func (j *MemJournal) Restore(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("journal: restore: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	var floor, commitIndex, count uint64
	floor, raw = marshal.ReadInt(raw)
	commitIndex, raw = marshal.ReadInt(raw)
	count, raw = marshal.ReadInt(raw)

	entries := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		var term, isConfig, dataLen uint64
		term, raw = marshal.ReadInt(raw)
		isConfig, raw = marshal.ReadInt(raw)
		dataLen, raw = marshal.ReadInt(raw)

		var data []byte
		data, raw = marshal.ReadBytesCopy(raw, dataLen)

		entries = append(entries, Entry{
			Term:     int(term),
			Data:     data,
			IsConfig: isConfig != 0,
		})
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.floor = int64(floor)
	j.commitIndex = int64(commitIndex)
	j.entries = entries
	return nil
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
