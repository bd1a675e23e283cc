// Package node is the host orchestrator: it owns a *raft.Server and
// supplies everything the engine cannot do for itself -- sending RPCs,
// persisting state, and applying committed entries to a state machine.
// The engine's own decisions (election, replication, commit) live in
// package raft; this package is left with exactly the I/O the engine
// calls out for.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mossraft/raftcore/internal/statemachine"
	"github.com/mossraft/raftcore/internal/storage"
	"github.com/mossraft/raftcore/internal/transport"
	"github.com/mossraft/raftcore/raft"
)

// PeerConfig is one other member of the cluster reachable over the network.
type PeerConfig struct {
	ID     raft.NodeID
	Addr   string
	Voting bool
}

// Config holds everything needed to bring up a Node.
type Config struct {
	SelfID            raft.NodeID
	DataDir           string
	TermFile          string
	LogFile           string
	Peers             []PeerConfig
	ElectionTimeoutMS int
	RequestTimeoutMS  int
}

// voteResult and appendResult carry RPC outcomes from the send goroutines
// back to the single-threaded Run loop, since raft.Capability forbids a
// callback from re-entering the Server synchronously.
type voteResult struct {
	from raft.NodeID
	resp *raft.RequestVoteResponse
}

type appendResult struct {
	from raft.NodeID
	resp *raft.AppendEntriesResponse
}

// Node wraps a *raft.Server with networking, persistence and a user state
// machine, and is itself the raft.Capability the engine calls back into.
type Node struct {
	raft.NoopCapability

	mu  sync.Mutex
	srv *raft.Server

	store *storage.Store
	sm    *statemachine.KV

	peers map[raft.NodeID]*peerConn

	requestTimeout time.Duration
	tickInterval   time.Duration

	voteResponses   chan voteResult
	appendResponses chan appendResult
}

// peerConn is a lazily-dialed connection to one other cluster member.
type peerConn struct {
	addr   string
	client *transport.Client
}

// New constructs a Node, replaying any persisted term/vote/log state before
// the engine starts ticking.
func New(cfg Config) (*Node, error) {
	store := storage.New(cfg.TermFile, cfg.LogFile)

	n := &Node{
		store:           store,
		sm:              statemachine.New(),
		peers:           make(map[raft.NodeID]*peerConn),
		requestTimeout:  time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		tickInterval:    10 * time.Millisecond,
		voteResponses:   make(chan voteResult, 64),
		appendResponses: make(chan appendResult, 64),
	}

	initialNodes := make([]raft.NodeConfig, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		initialNodes = append(initialNodes, raft.NodeConfig{ID: p.ID, Voting: p.Voting})
		n.peers[p.ID] = &peerConn{addr: p.Addr}
	}

	srv, err := raft.NewServer(raft.Config{
		SelfID:            cfg.SelfID,
		ElectionTimeoutMS: cfg.ElectionTimeoutMS,
		RequestTimeoutMS:  cfg.RequestTimeoutMS,
		InitialNodes:      initialNodes,
	}, n)
	if err != nil {
		return nil, fmt.Errorf("node: new server: %w", err)
	}
	n.srv = srv

	term, votedFor := store.ReadTerm()
	baseIndex, entries := store.ReadLog()
	srv.Restore(term, votedFor, baseIndex, entries, nil)

	log.Info().
		Uint64("term", uint64(term)).
		Int("nLogs", len(entries)).
		Uint32("self", uint32(cfg.SelfID)).
		Msg("node loaded from persisted state")

	return n, nil
}

func (n *Node) peerFor(id raft.NodeID) (*peerConn, error) {
	n.mu.Lock()
	pc, ok := n.peers[id]
	n.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("node: no address known for peer %d", id)
	}
	if pc.client == nil {
		client, err := transport.Dial(pc.addr)
		if err != nil {
			return nil, err
		}
		pc.client = client
	}
	return pc, nil
}

// Run drives the election/heartbeat clock and delivers RPC responses to the
// engine. It blocks until ctx is cancelled.
func (n *Node) Run(ctx context.Context) {
	ticker := time.NewTicker(n.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.mu.Lock()
			if err := n.srv.Tick(int(n.tickInterval / time.Millisecond)); err != nil {
				log.Error().Err(err).Msg("tick failed")
			}
			n.mu.Unlock()
		case r := <-n.voteResponses:
			n.mu.Lock()
			if err := n.srv.RecvRequestVoteResponse(r.from, r.resp); err != nil {
				log.Debug().Err(err).Uint32("from", uint32(r.from)).Msg("RecvRequestVoteResponse failed")
			}
			n.mu.Unlock()
		case r := <-n.appendResponses:
			n.mu.Lock()
			if err := n.srv.RecvAppendEntriesResponse(r.from, r.resp); err != nil {
				log.Debug().Err(err).Uint32("from", uint32(r.from)).Msg("RecvAppendEntriesResponse failed")
			}
			n.mu.Unlock()
		}
	}
}

// Submit proposes a new entry to the cluster; it only succeeds on the
// current leader.
func (n *Node) Submit(entry raft.Entry) (*raft.EntryResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.srv.RecvEntry(entry)
}

// StateMachine exposes the underlying key/value store for read queries.
func (n *Node) StateMachine() *statemachine.KV { return n.sm }

// Status is a point-in-time snapshot used by the admin HTTP surface.
type Status struct {
	SelfID      raft.NodeID
	Role        raft.Role
	Term        raft.Term
	Leader      *raft.NodeID
	CommitIndex raft.Index
	LastApplied raft.Index
	Nodes       []raft.Node
}

func (n *Node) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	nodes := n.srv.Nodes()
	out := make([]raft.Node, len(nodes))
	for i, nd := range nodes {
		out[i] = *nd
	}
	return Status{
		SelfID:      n.srv.SelfID(),
		Role:        n.srv.Role(),
		Term:        n.srv.CurrentTerm(),
		Leader:      n.srv.Leader(),
		CommitIndex: n.srv.CommitIndex(),
		LastApplied: n.srv.LastAppliedIndex(),
		Nodes:       out,
	}
}

// --- transport.Handler: incoming RPCs -------------------------------------

func (n *Node) HandleRequestVote(ctx context.Context, req *raft.RequestVoteRequest) (*raft.RequestVoteResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.srv.RecvRequestVote(raft.NodeID(req.CandidateID), req)
}

func (n *Node) HandleAppendEntries(ctx context.Context, req *raft.AppendEntriesRequest) (*raft.AppendEntriesResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.srv.RecvAppendEntries(raft.NodeID(req.LeaderID), req)
}

// --- raft.MandatoryCapability: outgoing RPCs ------------------------------

// SendRequestVote dispatches asynchronously: the network round trip and the
// resulting call back into the engine both happen outside this method, so
// it never re-enters the Server that invoked it.
func (n *Node) SendRequestVote(node *raft.Node, req *raft.RequestVoteRequest) error {
	pc, err := n.peerFor(node.ID)
	if err != nil {
		return err
	}
	go func() {
		resp, err := pc.client.RequestVote(n.requestTimeout, req)
		if err != nil {
			log.Debug().Err(err).Uint32("peer", uint32(node.ID)).Msg("RequestVote RPC failed, will retry on next election")
			return
		}
		n.voteResponses <- voteResult{from: node.ID, resp: resp}
	}()
	return nil
}

func (n *Node) SendAppendEntries(node *raft.Node, req *raft.AppendEntriesRequest) error {
	pc, err := n.peerFor(node.ID)
	if err != nil {
		return err
	}
	go func() {
		resp, err := pc.client.AppendEntries(n.requestTimeout, req)
		if err != nil {
			log.Debug().Err(err).Uint32("peer", uint32(node.ID)).Msg("AppendEntries RPC failed, will retry on next heartbeat")
			return
		}
		n.appendResponses <- appendResult{from: node.ID, resp: resp}
	}()
	return nil
}

func (n *Node) ApplyLog(entry *raft.Entry, index raft.Index) error {
	return n.sm.Apply(entry, index)
}

func (n *Node) PersistVote(nodeID *raft.NodeID) error {
	term, _ := n.store.ReadTerm()
	return n.store.WriteTerm(term, nodeID)
}

func (n *Node) PersistTerm(term raft.Term) error {
	_, votedFor := n.store.ReadTerm()
	return n.store.WriteTerm(term, votedFor)
}

func (n *Node) LogOffer(entry *raft.Entry, index raft.Index) error {
	base, entries := n.store.ReadLog()
	entries = append(entries, *entry)
	return n.store.WriteLog(base, entries)
}

func (n *Node) LogPop(entry *raft.Entry, index raft.Index) error {
	base, entries := n.store.ReadLog()
	if len(entries) > 0 && entries[len(entries)-1].Index == index {
		entries = entries[:len(entries)-1]
	}
	return n.store.WriteLog(base, entries)
}

// --- raft.OptionalCapability overrides -------------------------------------

func (n *Node) LogPoll(entry *raft.Entry, index raft.Index) error {
	base, entries := n.store.ReadLog()
	if len(entries) > 0 && entries[0].Index == index {
		entries = entries[1:]
		base = index + 1
	}
	return n.store.WriteLog(base, entries)
}

func (n *Node) NodeHasSufficientLogs(node *raft.Node) error {
	log.Info().Uint32("node", uint32(node.ID)).Msg("node has caught up, eligible for promotion")
	return nil
}

func (n *Node) Log(message string) {
	log.Trace().Msg(message)
}

func (n *Node) MembershipEvent(node *raft.Node, event raft.MembershipEvent) {
	log.Info().Uint32("node", uint32(node.ID)).Str("event", event.String()).Msg("membership change")
}
