package raft

// RequestVoteRequest is sent by a candidate to solicit a vote.
type RequestVoteRequest struct {
	Term         Term
	CandidateID  NodeID
	LastLogIndex Index
	LastLogTerm  Term
}

// RequestVoteResponse is a voter's reply to a RequestVoteRequest.
type RequestVoteResponse struct {
	Term        Term
	VoteGranted bool
}

// AppendEntriesRequest replicates entries (or, with Entries empty, serves as
// a heartbeat) from the leader to a follower.
type AppendEntriesRequest struct {
	Term         Term
	LeaderID     NodeID
	PrevLogIndex Index
	PrevLogTerm  Term
	LeaderCommit Index
	Entries      []Entry
}

// AppendEntriesResponse is a follower's reply to an AppendEntriesRequest.
// FirstIndex is the conflict-term-skip hint described in spec.md section 4.1;
// it is 0 when unused.
type AppendEntriesResponse struct {
	Term         Term
	Success      bool
	CurrentIndex Index
	FirstIndex   Index
}

// EntryResult is returned by RecvEntry on successful submission.
type EntryResult struct {
	AssignedIndex Index
	AssignedTerm  Term
}

// EntryResponse identifies a previously-submitted entry for status polling
// via EntryResponseStatus.
type EntryResponse struct {
	Term  Term
	Index Index
	ID    uint32
}

// CommitStatus is the result of EntryResponseStatus.
type CommitStatus int

const (
	CommitPending    CommitStatus = 0
	CommitCommitted  CommitStatus = 1
	CommitSuperseded CommitStatus = -1
)
