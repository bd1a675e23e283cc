package raft

import (
	"math/rand"
	"sort"
	"time"
)

// Server is the per-node Raft state machine: role, term, vote, the
// replicated log, per-peer replication progress, and the membership
// protocol, per spec.md sections 3-4. All operations are synchronous,
// non-blocking, and non-reentrant with respect to each other -- the host
// is responsible for serializing calls onto a single thread.
type Server struct {
	selfID NodeID
	role   Role

	currentTerm Term
	votedFor    *NodeID
	leader      *NodeID

	commitIndex      Index
	lastAppliedIndex Index

	electionTimeoutMS     int
	electionTimeoutRandMS int
	requestTimeoutMS      int
	timeSinceLastEventMS  int
	maxAppendEntriesBatch int

	nodes      *nodeTable
	log        *Log
	membership *membership

	votingConfigChangeInFlight bool
	shutdownPending            bool

	cap Capability
	rng *rand.Rand

	// UserData is an opaque back-channel for the host (design note 9).
	UserData interface{}
}

// NewServer constructs an empty Server in the Follower role, seeded with
// the self node and any InitialNodes from cfg. cap must not be nil.
func NewServer(cfg Config, cap Capability) (*Server, error) {
	if cap == nil {
		return nil, &Error{Code: CodeCallbackFailed, msg: "capability must not be nil"}
	}
	electionTimeout := cfg.ElectionTimeoutMS
	if electionTimeout <= 0 {
		electionTimeout = 1000
	}
	requestTimeout := cfg.RequestTimeoutMS
	if requestTimeout <= 0 {
		requestTimeout = 200
	}
	batch := cfg.MaxAppendEntriesBatch
	if batch <= 0 {
		batch = 8
	}

	s := &Server{
		selfID:                cfg.SelfID,
		role:                  Follower,
		electionTimeoutMS:     electionTimeout,
		requestTimeoutMS:      requestTimeout,
		maxAppendEntriesBatch: batch,
		cap:                   cap,
		rng:                   rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(cfg.SelfID))),
	}
	s.nodes = newNodeTable(cfg.SelfID)
	s.log = newLog(cap)
	s.membership = &membership{server: s}

	s.nodes.Add(&Node{ID: cfg.SelfID, Voting: true, Active: true, NextIndex: 1})
	for _, nc := range cfg.InitialNodes {
		if nc.ID == cfg.SelfID {
			continue
		}
		s.nodes.Add(&Node{ID: nc.ID, Voting: nc.Voting, Active: true, NextIndex: 1})
	}
	s.resetElectionTimer()
	return s, nil
}

// Restore replays durable state into a freshly constructed Server at
// startup, per spec.md section 6. entries must be in index order starting
// at baseIndex. If lastApplied is nil, the applied index is recovered as
// max(0, baseIndex-1); a host that separately persists last_applied_index
// (because its state machine is not idempotent) should pass it explicitly.
func (s *Server) Restore(term Term, votedFor *NodeID, baseIndex Index, entries []Entry, lastApplied *Index) {
	s.currentTerm = term
	s.votedFor = votedFor
	if baseIndex == 0 {
		baseIndex = 1
	}
	s.log.ReplaySetBase(baseIndex)
	for _, e := range entries {
		s.log.ReplayAppend(e)
		s.membership.onOffer(&e)
	}
	recovered := baseIndex - 1
	s.commitIndex = recovered
	if lastApplied != nil {
		s.lastAppliedIndex = *lastApplied
	} else {
		s.lastAppliedIndex = recovered
	}
}

// AddNode adds a node to the table directly, for bootstrap configuration
// outside of the membership-change log protocol.
func (s *Server) AddNode(n *Node) {
	s.nodes.Add(n)
}

// Accessors.

func (s *Server) SelfID() NodeID           { return s.selfID }
func (s *Server) Role() Role               { return s.role }
func (s *Server) CurrentTerm() Term        { return s.currentTerm }
func (s *Server) VotedFor() *NodeID        { return s.votedFor }
func (s *Server) Leader() *NodeID          { return s.leader }
func (s *Server) CommitIndex() Index       { return s.commitIndex }
func (s *Server) LastAppliedIndex() Index  { return s.lastAppliedIndex }
func (s *Server) LastLogIndex() Index      { return s.log.LastIndex() }
func (s *Server) IsShutdown() bool         { return s.shutdownPending }
func (s *Server) VotingChangeInFlight() bool {
	return s.votingConfigChangeInFlight
}

// Node returns the current record for id, if known.
func (s *Server) Node(id NodeID) (*Node, bool) { return s.nodes.Get(id) }

// Nodes returns every known node in ID order.
func (s *Server) Nodes() []*Node { return s.nodes.All() }

// --- term discipline -------------------------------------------------

// applyTermRule implements the universal rule of spec.md section 4.1: on
// any message whose term exceeds currentTerm, step down, adopt the term,
// clear the vote, and persist both before continuing.
func (s *Server) applyTermRule(term Term) error {
	if term <= s.currentTerm {
		return nil
	}
	s.currentTerm = term
	s.role = Follower
	s.votedFor = nil
	if err := s.persistTerm(); err != nil {
		return err
	}
	if err := s.persistVote(); err != nil {
		return err
	}
	s.leader = nil
	return nil
}

func (s *Server) persistTerm() error {
	if err := s.cap.PersistTerm(s.currentTerm); err != nil {
		return wrapCallback(err)
	}
	return nil
}

func (s *Server) persistVote() error {
	if err := s.cap.PersistVote(s.votedFor); err != nil {
		return wrapCallback(err)
	}
	return nil
}

func (s *Server) resetElectionTimer() {
	s.timeSinceLastEventMS = 0
	s.electionTimeoutRandMS = s.electionTimeoutMS + s.rng.Intn(s.electionTimeoutMS)
}

// --- majority math -----------------------------------------------------

func (s *Server) majority() int {
	return s.nodes.votingActiveCount()/2 + 1
}

func (s *Server) votesGranted() int {
	n := 0
	for _, node := range s.nodes.All() {
		if !node.Voting || !node.Active {
			continue
		}
		if node.ID == s.selfID || node.HasVoteForMe {
			n++
		}
	}
	return n
}

// --- tick ----------------------------------------------------------------

// Tick advances the server's internal clock by elapsedMS and drives
// election timeouts, leader heartbeats, and commit/apply advancement.
func (s *Server) Tick(elapsedMS int) error {
	s.timeSinceLastEventMS += elapsedMS
	if !s.shutdownPending {
		switch s.role {
		case Follower, Candidate:
			if s.timeSinceLastEventMS >= s.electionTimeoutRandMS {
				if err := s.startElection(); err != nil {
					return err
				}
			}
		case Leader:
			if s.timeSinceLastEventMS >= s.requestTimeoutMS {
				if err := s.broadcastAppendEntries(); err != nil {
					return err
				}
				s.timeSinceLastEventMS = 0
			}
		}
	}
	return s.ApplyAll()
}

// --- elections -----------------------------------------------------------

func (s *Server) startElection() error {
	self := s.nodes.Self()
	if self == nil || !self.Voting {
		s.resetElectionTimer()
		return nil
	}

	s.currentTerm++
	if err := s.persistTerm(); err != nil {
		return err
	}
	me := s.selfID
	s.votedFor = &me
	if err := s.persistVote(); err != nil {
		return err
	}
	s.role = Candidate
	s.leader = nil
	s.resetElectionTimer()

	lastIdx := s.log.LastIndex()
	lastTerm, _ := s.log.TermAt(lastIdx)
	for _, n := range s.nodes.Peers() {
		n.HasVoteForMe = false
		if !n.Voting || !n.Active {
			continue
		}
		req := &RequestVoteRequest{
			Term:         s.currentTerm,
			CandidateID:  s.selfID,
			LastLogIndex: lastIdx,
			LastLogTerm:  lastTerm,
		}
		if err := s.cap.SendRequestVote(n, req); err != nil {
			return wrapCallback(err)
		}
	}
	return s.maybeBecomeLeader()
}

func (s *Server) maybeBecomeLeader() error {
	if s.role != Candidate {
		return nil
	}
	if s.votesGranted() >= s.majority() {
		return s.becomeLeader()
	}
	return nil
}

func (s *Server) becomeLeader() error {
	s.role = Leader
	me := s.selfID
	s.leader = &me
	lastIdx := s.log.LastIndex()
	for _, n := range s.nodes.All() {
		n.NextIndex = lastIdx + 1
		n.MatchIndex = 0
		n.HasSufficientLogs = false
		n.HasVoteForMe = false
	}
	if self := s.nodes.Self(); self != nil {
		self.MatchIndex = lastIdx
	}
	s.recomputeVotingChangeInFlight()
	return s.broadcastAppendEntries()
}

// recomputeVotingChangeInFlight scans the uncommitted log suffix for a
// voting-configuration-changing entry, since a freshly elected leader has
// no other record of one being outstanding.
func (s *Server) recomputeVotingChangeInFlight() {
	for idx := s.commitIndex + 1; idx <= s.log.LastIndex(); idx++ {
		e, ok := s.log.Get(idx)
		if ok && isVotingChange(e.Type) {
			s.votingConfigChangeInFlight = true
			return
		}
	}
	s.votingConfigChangeInFlight = false
}

// --- RequestVote -----------------------------------------------------------

// RecvRequestVote handles an incoming RequestVote RPC.
func (s *Server) RecvRequestVote(from NodeID, req *RequestVoteRequest) (*RequestVoteResponse, error) {
	if err := s.applyTermRule(req.Term); err != nil {
		return nil, err
	}
	if req.Term < s.currentTerm {
		return &RequestVoteResponse{Term: s.currentTerm, VoteGranted: false}, nil
	}
	if s.shutdownPending {
		return &RequestVoteResponse{Term: s.currentTerm, VoteGranted: false}, nil
	}

	grant := false
	if s.votedFor == nil || *s.votedFor == req.CandidateID {
		lastIdx := s.log.LastIndex()
		lastTerm, _ := s.log.TermAt(lastIdx)
		upToDate := req.LastLogTerm > lastTerm ||
			(req.LastLogTerm == lastTerm && req.LastLogIndex >= lastIdx)
		if upToDate {
			grant = true
		}
	}
	if grant {
		cid := req.CandidateID
		s.votedFor = &cid
		if err := s.persistVote(); err != nil {
			return nil, err
		}
		s.resetElectionTimer()
	}
	return &RequestVoteResponse{Term: s.currentTerm, VoteGranted: grant}, nil
}

// RecvRequestVoteResponse handles a candidate's reply from a peer.
func (s *Server) RecvRequestVoteResponse(from NodeID, resp *RequestVoteResponse) error {
	if err := s.applyTermRule(resp.Term); err != nil {
		return err
	}
	if s.role != Candidate || resp.Term != s.currentTerm || !resp.VoteGranted {
		return nil
	}
	n, ok := s.nodes.Get(from)
	if !ok {
		return nil
	}
	n.HasVoteForMe = true
	return s.maybeBecomeLeader()
}

// --- AppendEntries -----------------------------------------------------------

// RecvAppendEntries handles an incoming AppendEntries RPC.
func (s *Server) RecvAppendEntries(from NodeID, req *AppendEntriesRequest) (*AppendEntriesResponse, error) {
	if err := s.applyTermRule(req.Term); err != nil {
		return nil, err
	}
	if req.Term < s.currentTerm {
		return &AppendEntriesResponse{Term: s.currentTerm, Success: false, CurrentIndex: s.log.LastIndex()}, nil
	}

	if req.PrevLogIndex > 0 {
		entry, ok := s.log.Get(req.PrevLogIndex)
		if !ok {
			return &AppendEntriesResponse{Term: s.currentTerm, Success: false, CurrentIndex: s.log.LastIndex()}, nil
		}
		if entry.Term != req.PrevLogTerm {
			conflictTerm := entry.Term
			firstIdx := req.PrevLogIndex
			for firstIdx > s.log.BaseIndex() {
				prev, ok := s.log.Get(firstIdx - 1)
				if !ok || prev.Term != conflictTerm {
					break
				}
				firstIdx--
			}
			return &AppendEntriesResponse{Term: s.currentTerm, Success: false, CurrentIndex: firstIdx, FirstIndex: firstIdx}, nil
		}
	}

	s.role = Follower
	f := from
	s.leader = &f
	s.resetElectionTimer()

	for k := range req.Entries {
		idx := req.PrevLogIndex + 1 + Index(k)
		existing, ok := s.log.Get(idx)
		if ok && existing.Term == req.Entries[k].Term {
			continue
		}
		if ok {
			if idx <= s.commitIndex {
				return nil, &Error{Code: CodeCallbackFailed, msg: "leader attempted to truncate a committed entry"}
			}
			if err := s.truncateFrom(idx); err != nil {
				return nil, err
			}
		}
		entryCopy := req.Entries[k]
		if err := s.appendEntry(&entryCopy); err != nil {
			return nil, err
		}
	}

	if req.LeaderCommit > s.commitIndex {
		newCommit := req.LeaderCommit
		if s.log.LastIndex() < newCommit {
			newCommit = s.log.LastIndex()
		}
		s.commitIndex = newCommit
	}

	return &AppendEntriesResponse{
		Term:         s.currentTerm,
		Success:      true,
		CurrentIndex: req.PrevLogIndex + Index(len(req.Entries)),
	}, nil
}

// RecvAppendEntriesResponse handles a follower's reply as leader.
func (s *Server) RecvAppendEntriesResponse(from NodeID, resp *AppendEntriesResponse) error {
	if err := s.applyTermRule(resp.Term); err != nil {
		return err
	}
	if s.role != Leader || resp.Term < s.currentTerm {
		return nil
	}
	n, ok := s.nodes.Get(from)
	if !ok {
		return nil
	}
	if resp.Success {
		n.MatchIndex = resp.CurrentIndex
		n.NextIndex = n.MatchIndex + 1
		if !n.Voting && n.MatchIndex >= s.log.LastIndex() && !n.HasSufficientLogs {
			n.HasSufficientLogs = true
			if err := s.cap.NodeHasSufficientLogs(n); err != nil {
				return wrapCallback(err)
			}
		}
		return s.advanceCommit()
	}
	if resp.CurrentIndex > 0 {
		n.NextIndex = resp.CurrentIndex
	} else if n.NextIndex > 1 {
		n.NextIndex--
	}
	return nil
}

// advanceCommit is the only path by which a leader may advance its own
// commit index (spec.md section 4.1, "Commit advancement").
func (s *Server) advanceCommit() error {
	all := s.nodes.All()
	matches := make([]Index, 0, len(all))
	for _, n := range all {
		if !n.Voting || !n.Active {
			continue
		}
		mi := n.MatchIndex
		if n.ID == s.selfID {
			mi = s.log.LastIndex()
		}
		matches = append(matches, mi)
	}
	maj := s.majority()
	if maj > len(matches) {
		return nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i] > matches[j] })
	n := matches[maj-1]
	if n <= s.commitIndex {
		return nil
	}
	term, ok := s.log.TermAt(n)
	if ok && term == s.currentTerm {
		s.commitIndex = n
	}
	return nil
}

func (s *Server) broadcastAppendEntries() error {
	for _, n := range s.nodes.Peers() {
		if !n.Active {
			continue
		}
		if err := s.sendAppendEntriesTo(n); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) sendAppendEntriesTo(n *Node) error {
	next := n.NextIndex
	if next == 0 {
		next = 1
	}
	prevIdx := next - 1
	prevTerm, ok := s.log.TermAt(prevIdx)
	if !ok {
		// The peer needs entries older than our retained base (it fell
		// behind a compaction). Snapshot transfer is out of scope (spec.md
		// section 1); fall back to replicating from the base so the peer
		// at least converges once it is caught up by other means.
		prevIdx = s.log.BaseIndex() - 1
		prevTerm, _ = s.log.TermAt(prevIdx)
		next = s.log.BaseIndex()
	}
	entries := s.log.Slice(next, s.maxAppendEntriesBatch)
	req := &AppendEntriesRequest{
		Term:         s.currentTerm,
		LeaderID:     s.selfID,
		PrevLogIndex: prevIdx,
		PrevLogTerm:  prevTerm,
		LeaderCommit: s.commitIndex,
		Entries:      entries,
	}
	if err := s.cap.SendAppendEntries(n, req); err != nil {
		return wrapCallback(err)
	}
	return nil
}

// --- client entries -----------------------------------------------------

// RecvEntry submits a new entry for replication. It is leader-only.
func (s *Server) RecvEntry(entry Entry) (*EntryResult, error) {
	if s.role != Leader {
		return nil, ErrNotLeader
	}
	if s.shutdownPending {
		return nil, ErrShutdown
	}
	if isVotingChange(entry.Type) && s.votingConfigChangeInFlight {
		return nil, ErrOneVotingChangeOnly
	}

	entry.Term = s.currentTerm
	if err := s.appendEntry(&entry); err != nil {
		return nil, err
	}
	if self := s.nodes.Self(); self != nil {
		self.MatchIndex = s.log.LastIndex()
	}
	if err := s.advanceCommit(); err != nil {
		return nil, err
	}
	if err := s.broadcastAppendEntries(); err != nil {
		return nil, err
	}
	return &EntryResult{AssignedIndex: entry.Index, AssignedTerm: entry.Term}, nil
}

// EntryResponseStatus answers msg_entry_response_committed: whether the
// entry described by resp is still pending, has committed, or was
// superseded by a later leader overwriting that index.
func (s *Server) EntryResponseStatus(resp EntryResponse) CommitStatus {
	e, ok := s.log.Get(resp.Index)
	if !ok || e.Term != resp.Term || e.ID != resp.ID {
		return CommitSuperseded
	}
	if resp.Index <= s.commitIndex {
		return CommitCommitted
	}
	return CommitPending
}

// ApplyAll advances lastAppliedIndex up to commitIndex, invoking ApplyLog
// and the membership apply-time effects for each entry in order.
func (s *Server) ApplyAll() error {
	for s.lastAppliedIndex < s.commitIndex {
		idx := s.lastAppliedIndex + 1
		e, ok := s.log.Get(idx)
		if !ok {
			break
		}
		if err := s.cap.ApplyLog(e, idx); err != nil {
			return wrapCallback(err)
		}
		s.membership.onApply(e)
		s.lastAppliedIndex = idx
	}
	return nil
}

// --- log mutation helpers shared by RecvEntry / RecvAppendEntries ---------

func (s *Server) appendEntry(e *Entry) error {
	if err := s.log.Append(e); err != nil {
		return wrapCallback(err)
	}
	s.membership.onOffer(e)
	return nil
}

func (s *Server) truncateFrom(idx Index) error {
	popped, err := s.log.TruncateFrom(idx)
	for i := range popped {
		s.membership.onPop(&popped[i])
	}
	if err != nil {
		return wrapCallback(err)
	}
	return nil
}
