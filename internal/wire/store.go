package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mossraft/raftcore/raft"
)

// TermRecord field numbers. hasVotedFor distinguishes "no vote cast" from
// node ID 0, since NodeID 0 is a valid (if unusual) identifier.
const (
	fieldTRTerm        = 1
	fieldTRHasVotedFor = 2
	fieldTRVotedFor    = 3
)

type TermRecord struct {
	Term     raft.Term
	VotedFor *raft.NodeID
}

func MarshalTermRecord(r *TermRecord) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTRTerm, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Term)
	b = protowire.AppendTag(b, fieldTRHasVotedFor, protowire.VarintType)
	b = protowire.AppendVarint(b, boolToVarint(r.VotedFor != nil))
	if r.VotedFor != nil {
		b = protowire.AppendTag(b, fieldTRVotedFor, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*r.VotedFor))
	}
	return b
}

func UnmarshalTermRecord(b []byte) (*TermRecord, error) {
	r := &TermRecord{}
	var hasVotedFor bool
	var votedFor uint64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad term_record tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldTRTerm:
			v, n := protowire.ConsumeVarint(b)
			r.Term, b = v, b[n:]
		case fieldTRHasVotedFor:
			v, n := protowire.ConsumeVarint(b)
			hasVotedFor, b = v != 0, b[n:]
		case fieldTRVotedFor:
			v, n := protowire.ConsumeVarint(b)
			votedFor, b = v, b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad term_record field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if hasVotedFor {
		id := raft.NodeID(votedFor)
		r.VotedFor = &id
	}
	return r, nil
}

// LogStore field numbers.
const (
	fieldLSBaseIndex = 1
	fieldLSEntries   = 2
)

type LogStore struct {
	BaseIndex raft.Index
	Entries   []raft.Entry
}

func MarshalLogStore(s *LogStore) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldLSBaseIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, s.BaseIndex)
	for i := range s.Entries {
		b = protowire.AppendTag(b, fieldLSEntries, protowire.BytesType)
		b = protowire.AppendBytes(b, MarshalEntry(&s.Entries[i]))
	}
	return b
}

func UnmarshalLogStore(b []byte) (*LogStore, error) {
	s := &LogStore{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad log_store tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldLSBaseIndex:
			v, n := protowire.ConsumeVarint(b)
			s.BaseIndex, b = v, b[n:]
		case fieldLSEntries:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad log_store.entries: %w", protowire.ParseError(n))
			}
			e, _, err := ConsumeEntry(raw)
			if err != nil {
				return nil, err
			}
			s.Entries = append(s.Entries, e)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad log_store field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return s, nil
}
