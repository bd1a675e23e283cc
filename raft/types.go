// Package raft implements the in-memory core of a single-group Raft
// consensus engine: role/term discipline, the replicated log, per-peer
// replication progress, and stepwise membership changes. It performs no
// I/O of its own -- every side effect (sending RPCs, persisting state,
// applying committed entries to a user state machine) is delegated to a
// Capability supplied by the host.
package raft

// Term is a Raft term number. Terms are monotonically non-decreasing.
type Term = uint64

// Index is a 1-based, gap-free log position.
type Index = uint64

// NodeID identifies a cluster member.
type NodeID = uint32

// Role is the operating mode of a server.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// EntryType discriminates the purpose of a log entry. NORMAL entries carry
// application payload; the rest drive the membership-change protocol.
type EntryType int

const (
	EntryNormal EntryType = iota
	EntryAddNonVotingNode
	EntryAddNode
	EntryDemoteNode
	EntryRemoveNode
)

func (t EntryType) String() string {
	switch t {
	case EntryNormal:
		return "normal"
	case EntryAddNonVotingNode:
		return "add_nonvoting_node"
	case EntryAddNode:
		return "add_node"
	case EntryDemoteNode:
		return "demote_node"
	case EntryRemoveNode:
		return "remove_node"
	default:
		return "unknown"
	}
}

func isVotingChange(t EntryType) bool {
	return t == EntryAddNode || t == EntryDemoteNode || t == EntryRemoveNode
}

// Entry is one record in the replicated log. ID is an opaque client tag
// used for dedup/matching; it carries no consensus meaning.
type Entry struct {
	Index   Index
	Term    Term
	ID      uint32
	Type    EntryType
	Payload []byte
}

// Node is a cluster member's replication state as tracked by this server.
// UserData is an opaque back-channel for the host.
type Node struct {
	ID                NodeID
	Voting            bool
	Active            bool
	NextIndex         Index
	MatchIndex        Index
	HasSufficientLogs bool
	HasVoteForMe      bool
	UserData          interface{}
}

// NodeConfig bootstraps a member of the initial configuration.
type NodeConfig struct {
	ID     NodeID
	Voting bool
}

// Config carries the host-set options from spec.md section 6.
type Config struct {
	SelfID                NodeID
	ElectionTimeoutMS     int
	RequestTimeoutMS      int
	MaxAppendEntriesBatch int
	InitialNodes          []NodeConfig
}

// MembershipEvent describes a membership-table change for diagnostics.
type MembershipEvent int

const (
	MembershipNodeAdded MembershipEvent = iota
	MembershipNodePromoted
	MembershipNodeDemoted
	MembershipNodeRemoved
)

func (e MembershipEvent) String() string {
	switch e {
	case MembershipNodeAdded:
		return "node_added"
	case MembershipNodePromoted:
		return "node_promoted"
	case MembershipNodeDemoted:
		return "node_demoted"
	case MembershipNodeRemoved:
		return "node_removed"
	default:
		return "unknown"
	}
}
