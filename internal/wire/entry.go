// Package wire is the on-wire / on-disk codec for raft protocol messages.
// It hand-rolls a protobuf-compatible binary encoding on top of
// google.golang.org/protobuf/encoding/protowire's low-level
// varint/length-delimited primitives, without a protoc codegen step (see
// DESIGN.md for why the generated-message path was dropped).
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mossraft/raftcore/raft"
)

// Entry field numbers.
const (
	fieldEntryIndex = 1
	fieldEntryTerm  = 2
	fieldEntryID    = 3
	fieldEntryType  = 4
	fieldEntryData  = 5
)

// AppendEntry appends the wire encoding of e to b.
func AppendEntry(b []byte, e *raft.Entry) []byte {
	b = protowire.AppendTag(b, fieldEntryIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, e.Index)
	b = protowire.AppendTag(b, fieldEntryTerm, protowire.VarintType)
	b = protowire.AppendVarint(b, e.Term)
	b = protowire.AppendTag(b, fieldEntryID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.ID))
	b = protowire.AppendTag(b, fieldEntryType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Type))
	if len(e.Payload) > 0 {
		b = protowire.AppendTag(b, fieldEntryData, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Payload)
	}
	return b
}

// MarshalEntry encodes e as a standalone message.
func MarshalEntry(e *raft.Entry) []byte {
	return AppendEntry(nil, e)
}

// ConsumeEntry decodes an Entry from the front of b, returning the
// remaining unconsumed bytes (used when entries are embedded length-
// delimited inside a parent message).
func ConsumeEntry(b []byte) (raft.Entry, []byte, error) {
	var e raft.Entry
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, nil, fmt.Errorf("wire: bad entry tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldEntryIndex:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, nil, fmt.Errorf("wire: bad entry.index: %w", protowire.ParseError(n))
			}
			e.Index = v
			b = b[n:]
		case fieldEntryTerm:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, nil, fmt.Errorf("wire: bad entry.term: %w", protowire.ParseError(n))
			}
			e.Term = v
			b = b[n:]
		case fieldEntryID:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, nil, fmt.Errorf("wire: bad entry.id: %w", protowire.ParseError(n))
			}
			e.ID = uint32(v)
			b = b[n:]
		case fieldEntryType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, nil, fmt.Errorf("wire: bad entry.type: %w", protowire.ParseError(n))
			}
			e.Type = raft.EntryType(v)
			b = b[n:]
		case fieldEntryData:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, nil, fmt.Errorf("wire: bad entry.payload: %w", protowire.ParseError(n))
			}
			e.Payload = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, nil, fmt.Errorf("wire: bad entry field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return e, b, nil
}

// UnmarshalEntry decodes a standalone Entry message.
func UnmarshalEntry(b []byte) (raft.Entry, error) {
	e, _, err := ConsumeEntry(b)
	return e, err
}
