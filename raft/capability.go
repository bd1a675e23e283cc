package raft

// MandatoryCapability is the set of host operations a Server cannot
// function without: sending the two RPCs, persisting the two pieces of
// vital metadata, applying committed entries, and persisting the log
// itself. Construction fails without an implementation of this surface.
type MandatoryCapability interface {
	// SendRequestVote transmits a RequestVote RPC to node. Per spec.md
	// section 6's return convention, a non-nil error surfaces as
	// CodeCallbackFailed from the enclosing public operation (startElection
	// or tick) and aborts the remaining fan-out; a host that wants transient
	// network errors to be non-fatal should swallow them itself and retry
	// out-of-band rather than returning them here. The engine performs no
	// retries of its own -- recovery from a skipped peer happens on the
	// next tick.
	SendRequestVote(node *Node, req *RequestVoteRequest) error

	// SendAppendEntries transmits an AppendEntries RPC to node, same
	// error contract as SendRequestVote.
	SendAppendEntries(node *Node, req *AppendEntriesRequest) error

	// ApplyLog delivers a committed entry to the host state machine, in
	// strict index order, exactly once per server.
	ApplyLog(entry *Entry, index Index) error

	// PersistVote durably records the server's vote for the current term.
	// nodeID is nil when the vote is being cleared.
	PersistVote(nodeID *NodeID) error

	// PersistTerm durably records the server's current term.
	PersistTerm(term Term) error

	// LogOffer persists a newly-appended entry. It MUST fsync before
	// returning success.
	LogOffer(entry *Entry, index Index) error

	// LogPop persists the removal of an entry during truncate-suffix.
	LogPop(entry *Entry, index Index) error
}

// OptionalCapability is the set of operations a host may decline to
// implement. NoopCapability supplies no-op defaults for all of them.
type OptionalCapability interface {
	// LogPoll persists the removal of the oldest entry during compaction.
	LogPoll(entry *Entry, index Index) error

	// NodeHasSufficientLogs fires once, when a leader first observes that
	// a non-voting node's match index has caught up to the leader's last
	// index. It does not fire for voting nodes.
	NodeHasSufficientLogs(node *Node) error

	// Log receives free-form diagnostic messages from the engine.
	Log(message string)

	// MembershipEvent fires on changes to the node table.
	MembershipEvent(node *Node, event MembershipEvent)
}

// Capability is the complete contract a host implements for a Server.
type Capability interface {
	MandatoryCapability
	OptionalCapability
}

// NoopCapability supplies default no-op implementations of
// OptionalCapability. Host capability types embed it so they only need to
// implement MandatoryCapability to satisfy Capability in full -- the
// "flat callback table with mandatory and optional members" of spec.md
// section 9 modeled as embedding rather than type erasure.
type NoopCapability struct{}

func (NoopCapability) LogPoll(*Entry, Index) error           { return nil }
func (NoopCapability) NodeHasSufficientLogs(*Node) error     { return nil }
func (NoopCapability) Log(string)                            {}
func (NoopCapability) MembershipEvent(*Node, MembershipEvent) {}
