package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mossraft/raftcore/raft"
)

// RequestVote field numbers.
const (
	fieldRVTerm         = 1
	fieldRVCandidateID  = 2
	fieldRVLastLogIndex = 3
	fieldRVLastLogTerm  = 4
)

// RequestVoteResponse field numbers.
const (
	fieldRVRTerm        = 1
	fieldRVRVoteGranted = 2
)

// AppendEntries field numbers.
const (
	fieldAETerm         = 1
	fieldAELeaderID     = 2
	fieldAEPrevLogIndex = 3
	fieldAEPrevLogTerm  = 4
	fieldAELeaderCommit = 5
	fieldAEEntries      = 6
)

// AppendEntriesResponse field numbers.
const (
	fieldAERTerm         = 1
	fieldAERSuccess      = 2
	fieldAERCurrentIndex = 3
	fieldAERFirstIndex   = 4
)

func MarshalRequestVote(req *raft.RequestVoteRequest) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRVTerm, protowire.VarintType)
	b = protowire.AppendVarint(b, req.Term)
	b = protowire.AppendTag(b, fieldRVCandidateID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(req.CandidateID))
	b = protowire.AppendTag(b, fieldRVLastLogIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, req.LastLogIndex)
	b = protowire.AppendTag(b, fieldRVLastLogTerm, protowire.VarintType)
	b = protowire.AppendVarint(b, req.LastLogTerm)
	return b
}

func UnmarshalRequestVote(b []byte) (*raft.RequestVoteRequest, error) {
	req := &raft.RequestVoteRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad request_vote tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldRVTerm:
			v, n := protowire.ConsumeVarint(b)
			req.Term, b = v, b[n:]
		case fieldRVCandidateID:
			v, n := protowire.ConsumeVarint(b)
			req.CandidateID, b = raft.NodeID(v), b[n:]
		case fieldRVLastLogIndex:
			v, n := protowire.ConsumeVarint(b)
			req.LastLogIndex, b = v, b[n:]
		case fieldRVLastLogTerm:
			v, n := protowire.ConsumeVarint(b)
			req.LastLogTerm, b = v, b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad request_vote field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return req, nil
}

func MarshalRequestVoteResponse(resp *raft.RequestVoteResponse) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRVRTerm, protowire.VarintType)
	b = protowire.AppendVarint(b, resp.Term)
	b = protowire.AppendTag(b, fieldRVRVoteGranted, protowire.VarintType)
	b = protowire.AppendVarint(b, boolToVarint(resp.VoteGranted))
	return b
}

func UnmarshalRequestVoteResponse(b []byte) (*raft.RequestVoteResponse, error) {
	resp := &raft.RequestVoteResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad request_vote_response tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldRVRTerm:
			v, n := protowire.ConsumeVarint(b)
			resp.Term, b = v, b[n:]
		case fieldRVRVoteGranted:
			v, n := protowire.ConsumeVarint(b)
			resp.VoteGranted, b = v != 0, b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad request_vote_response field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return resp, nil
}

func MarshalAppendEntries(req *raft.AppendEntriesRequest) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldAETerm, protowire.VarintType)
	b = protowire.AppendVarint(b, req.Term)
	b = protowire.AppendTag(b, fieldAELeaderID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(req.LeaderID))
	b = protowire.AppendTag(b, fieldAEPrevLogIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, req.PrevLogIndex)
	b = protowire.AppendTag(b, fieldAEPrevLogTerm, protowire.VarintType)
	b = protowire.AppendVarint(b, req.PrevLogTerm)
	b = protowire.AppendTag(b, fieldAELeaderCommit, protowire.VarintType)
	b = protowire.AppendVarint(b, req.LeaderCommit)
	for i := range req.Entries {
		b = protowire.AppendTag(b, fieldAEEntries, protowire.BytesType)
		b = protowire.AppendBytes(b, MarshalEntry(&req.Entries[i]))
	}
	return b
}

func UnmarshalAppendEntries(b []byte) (*raft.AppendEntriesRequest, error) {
	req := &raft.AppendEntriesRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad append_entries tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldAETerm:
			v, n := protowire.ConsumeVarint(b)
			req.Term, b = v, b[n:]
		case fieldAELeaderID:
			v, n := protowire.ConsumeVarint(b)
			req.LeaderID, b = raft.NodeID(v), b[n:]
		case fieldAEPrevLogIndex:
			v, n := protowire.ConsumeVarint(b)
			req.PrevLogIndex, b = v, b[n:]
		case fieldAEPrevLogTerm:
			v, n := protowire.ConsumeVarint(b)
			req.PrevLogTerm, b = v, b[n:]
		case fieldAELeaderCommit:
			v, n := protowire.ConsumeVarint(b)
			req.LeaderCommit, b = v, b[n:]
		case fieldAEEntries:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad append_entries.entries: %w", protowire.ParseError(n))
			}
			e, _, err := ConsumeEntry(raw)
			if err != nil {
				return nil, err
			}
			req.Entries = append(req.Entries, e)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad append_entries field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return req, nil
}

func MarshalAppendEntriesResponse(resp *raft.AppendEntriesResponse) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldAERTerm, protowire.VarintType)
	b = protowire.AppendVarint(b, resp.Term)
	b = protowire.AppendTag(b, fieldAERSuccess, protowire.VarintType)
	b = protowire.AppendVarint(b, boolToVarint(resp.Success))
	b = protowire.AppendTag(b, fieldAERCurrentIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, resp.CurrentIndex)
	b = protowire.AppendTag(b, fieldAERFirstIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, resp.FirstIndex)
	return b
}

func UnmarshalAppendEntriesResponse(b []byte) (*raft.AppendEntriesResponse, error) {
	resp := &raft.AppendEntriesResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad append_entries_response tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldAERTerm:
			v, n := protowire.ConsumeVarint(b)
			resp.Term, b = v, b[n:]
		case fieldAERSuccess:
			v, n := protowire.ConsumeVarint(b)
			resp.Success, b = v != 0, b[n:]
		case fieldAERCurrentIndex:
			v, n := protowire.ConsumeVarint(b)
			resp.CurrentIndex, b = v, b[n:]
		case fieldAERFirstIndex:
			v, n := protowire.ConsumeVarint(b)
			resp.FirstIndex, b = v, b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad append_entries_response field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return resp, nil
}

func boolToVarint(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}
