package raft

// fakeCapability is an in-memory Capability used by the unit tests in this
// package. It never touches disk or a network; sends are recorded so a test
// can inspect or manually deliver them, matching the style of the fake RPC
// peers used elsewhere in this corpus's Raft labs.
type fakeCapability struct {
	NoopCapability

	applied   []Entry
	offers    []Entry
	pops      []Entry
	term      Term
	votedFor  *NodeID
	sentVotes []sentVote
	sentAE    []sentAppend
	failNext  map[string]error

	sufficientLogs []NodeID
}

type sentVote struct {
	to  NodeID
	req *RequestVoteRequest
}

type sentAppend struct {
	to  NodeID
	req *AppendEntriesRequest
}

func newFakeCapability() *fakeCapability {
	return &fakeCapability{failNext: make(map[string]error)}
}

func (f *fakeCapability) SendRequestVote(node *Node, req *RequestVoteRequest) error {
	if err := f.takeFailure("SendRequestVote"); err != nil {
		return err
	}
	f.sentVotes = append(f.sentVotes, sentVote{to: node.ID, req: req})
	return nil
}

func (f *fakeCapability) SendAppendEntries(node *Node, req *AppendEntriesRequest) error {
	if err := f.takeFailure("SendAppendEntries"); err != nil {
		return err
	}
	f.sentAE = append(f.sentAE, sentAppend{to: node.ID, req: req})
	return nil
}

func (f *fakeCapability) ApplyLog(entry *Entry, index Index) error {
	if err := f.takeFailure("ApplyLog"); err != nil {
		return err
	}
	f.applied = append(f.applied, *entry)
	return nil
}

func (f *fakeCapability) PersistVote(nodeID *NodeID) error {
	if err := f.takeFailure("PersistVote"); err != nil {
		return err
	}
	f.votedFor = nodeID
	return nil
}

func (f *fakeCapability) PersistTerm(term Term) error {
	if err := f.takeFailure("PersistTerm"); err != nil {
		return err
	}
	f.term = term
	return nil
}

func (f *fakeCapability) LogOffer(entry *Entry, index Index) error {
	if err := f.takeFailure("LogOffer"); err != nil {
		return err
	}
	f.offers = append(f.offers, *entry)
	return nil
}

func (f *fakeCapability) LogPop(entry *Entry, index Index) error {
	if err := f.takeFailure("LogPop"); err != nil {
		return err
	}
	f.pops = append(f.pops, *entry)
	return nil
}

func (f *fakeCapability) NodeHasSufficientLogs(node *Node) error {
	f.sufficientLogs = append(f.sufficientLogs, node.ID)
	return nil
}

func (f *fakeCapability) takeFailure(op string) error {
	if err, ok := f.failNext[op]; ok {
		delete(f.failNext, op)
		return err
	}
	return nil
}
