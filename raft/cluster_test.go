package raft

import "testing"

// cluster wires together a small set of in-process Servers sharing nothing
// but a synchronous message-delivery loop, for the end-to-end scenarios in
// spec.md section 8. It is not a general-purpose transport: deliver drains
// whatever each fakeCapability queued and feeds it straight to the
// recipient's Recv* methods, round by round.
type cluster struct {
	t    *testing.T
	ids  []NodeID
	srv  map[NodeID]*Server
	caps map[NodeID]*fakeCapability
}

func newCluster(t *testing.T, ids ...NodeID) *cluster {
	c := &cluster{t: t, ids: ids, srv: map[NodeID]*Server{}, caps: map[NodeID]*fakeCapability{}}
	for _, id := range ids {
		cap := newFakeCapability()
		cfg := Config{SelfID: id, ElectionTimeoutMS: 1000, RequestTimeoutMS: 100}
		for _, peer := range ids {
			if peer == id {
				continue
			}
			cfg.InitialNodes = append(cfg.InitialNodes, NodeConfig{ID: peer, Voting: true})
		}
		s, err := NewServer(cfg, cap)
		if err != nil {
			t.Fatalf("NewServer(%d): %v", id, err)
		}
		c.srv[id] = s
		c.caps[id] = cap
	}
	return c
}

// deliver drains every server's outgoing queues exactly once and feeds them
// to their recipients, then delivers the resulting responses back. It
// returns the number of messages it moved, so a test can loop "until quiet".
func (c *cluster) deliver() int {
	moved := 0
	for _, from := range c.ids {
		cap := c.caps[from]

		votes := cap.sentVotes
		cap.sentVotes = nil
		for _, v := range votes {
			moved++
			to := c.srv[v.to]
			if to == nil {
				continue
			}
			resp, err := to.RecvRequestVote(from, v.req)
			if err != nil {
				c.t.Fatalf("RecvRequestVote on %d: %v", v.to, err)
			}
			if err := c.srv[from].RecvRequestVoteResponse(v.to, resp); err != nil {
				c.t.Fatalf("RecvRequestVoteResponse on %d: %v", from, err)
			}
		}

		aes := cap.sentAE
		cap.sentAE = nil
		for _, a := range aes {
			moved++
			to := c.srv[a.to]
			if to == nil {
				continue
			}
			resp, err := to.RecvAppendEntries(from, a.req)
			if err != nil {
				c.t.Fatalf("RecvAppendEntries on %d: %v", a.to, err)
			}
			if err := c.srv[from].RecvAppendEntriesResponse(a.to, resp); err != nil {
				c.t.Fatalf("RecvAppendEntriesResponse on %d: %v", from, err)
			}
		}
	}
	return moved
}

// settle repeatedly delivers messages (ticking leaders so they keep
// replicating) until no more are in flight or a round budget is exhausted.
func (c *cluster) settle(rounds int) {
	for i := 0; i < rounds; i++ {
		for _, id := range c.ids {
			if c.srv[id].Role() == Leader {
				_ = c.srv[id].Tick(c.srv[id].requestTimeoutMS)
			} else {
				_ = c.srv[id].ApplyAll()
			}
		}
		if c.deliver() == 0 {
			return
		}
	}
}

// electLeader ticks id past its election timeout and settles the resulting
// traffic, then fails the test if id did not become Leader.
func (c *cluster) electLeader(id NodeID) {
	if err := c.srv[id].Tick(100000); err != nil {
		c.t.Fatalf("Tick: %v", err)
	}
	c.settle(10)
	if c.srv[id].Role() != Leader {
		c.t.Fatalf("server %d did not become leader (role=%s)", id, c.srv[id].Role())
	}
}

func (c *cluster) leaderID() (NodeID, bool) {
	for _, id := range c.ids {
		if c.srv[id].Role() == Leader {
			return id, true
		}
	}
	return 0, false
}
