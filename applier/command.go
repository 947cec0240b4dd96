// Package applier provides a reference implementation of the external
// state-machine applier the follower only ever wakes by name
// (spec.md §6, "applier thread (external)"). It is a simple in-memory
// key-value store, grounded on the teacher's state-machine package
// (state-machine/command.go, state_machine.go), re-encoded with
// github.com/tchajed/marshal instead of the teacher's hand-rolled
// encoding/binary calls.
package applier

import (
	"fmt"

	"github.com/tchajed/marshal"
)

type cmdKind uint8

const (
	cmdSet cmdKind = iota
	cmdGet
)

type command struct {
	kind  cmdKind
	key   string
	value string
}

// encodeCommand is the inverse of decodeCommand, used by EncodeSet and
// EncodeGet to build committable payloads.
func encodeCommand(c command) []byte {
	buf := make([]byte, 0, 1+8+len(c.key)+8+len(c.value))
	buf = append(buf, byte(c.kind))
	buf = marshal.WriteInt(buf, uint64(len(c.key)))
	buf = marshal.WriteBytes(buf, []byte(c.key))
	buf = marshal.WriteInt(buf, uint64(len(c.value)))
	buf = marshal.WriteBytes(buf, []byte(c.value))
	return buf
}

// decodeCommand decodes a command from a byte slice. Layout:
//
//	[0]      - cmdKind
//	[1:9]    - keyLen (uint64)
//	[9:9+keyLen]          - key
//	[..:..+8]             - valueLen (uint64)
//	[..:..+valueLen]      - value
func decodeCommand(msg []byte) (command, error) {
	var cmd command
	if len(msg) < 9 {
		return cmd, fmt.Errorf("applier: command too short: %d bytes", len(msg))
	}

	cmd.kind = cmdKind(msg[0])
	rest := msg[1:]

	keyLen, rest := marshal.ReadInt(rest)
	var keyBytes []byte
	keyBytes, rest = marshal.ReadBytesCopy(rest, keyLen)
	cmd.key = string(keyBytes)

	if len(rest) < 8 {
		if cmd.kind == cmdGet {
			return cmd, nil
		}
		return cmd, fmt.Errorf("applier: command missing value length")
	}
	valueLen, rest := marshal.ReadInt(rest)
	var valueBytes []byte
	valueBytes, _ = marshal.ReadBytesCopy(rest, valueLen)
	cmd.value = string(valueBytes)

	return cmd, nil
}

// EncodeSet builds the replicated payload for a Set command, for use
// by demo/test leaders.
func EncodeSet(key, value string) []byte {
	return encodeCommand(command{kind: cmdSet, key: key, value: value})
}

// EncodeGet builds the replicated payload for a Get command.
func EncodeGet(key string) []byte {
	return encodeCommand(command{kind: cmdGet, key: key})
}
