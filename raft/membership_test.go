package raft

import "testing"

func TestEncodeDecodeNodeRef(t *testing.T) {
	payload := EncodeNodeRef(7, []byte("hello"))
	id, udata := DecodeNodeRef(payload)
	if id != 7 {
		t.Fatalf("id = %d, want 7", id)
	}
	if string(udata) != "hello" {
		t.Fatalf("udata = %q, want %q", udata, "hello")
	}
}

// Non-voting adds take effect at offer time, reachable before the entry
// commits -- this is what lets a leader start replicating to a brand new
// peer immediately.
func TestNonVotingAddTakesEffectAtOffer(t *testing.T) {
	c := newCluster(t, 1, 2, 3)
	c.electLeader(1)
	leader := c.srv[1]

	if _, err := leader.RecvEntry(Entry{Type: EntryAddNonVotingNode, Payload: EncodeNodeRef(9, nil)}); err != nil {
		t.Fatal(err)
	}
	node, ok := leader.Node(9)
	if !ok {
		t.Fatalf("node 9 should be in the table immediately after offer, before commit")
	}
	if node.Voting {
		t.Fatalf("node 9 should not be voting yet")
	}
	if leader.CommitIndex() != 0 {
		t.Fatalf("entry should not be committed yet")
	}
}

// Truncating an uncommitted ADD_NONVOTING_NODE reverses its table effect.
func TestTruncateReversesNonVotingAdd(t *testing.T) {
	cap := newFakeCapability()
	s, err := NewServer(Config{SelfID: 1}, cap)
	if err != nil {
		t.Fatal(err)
	}
	s.role = Leader
	entry := Entry{Type: EntryAddNonVotingNode, Payload: EncodeNodeRef(9, nil), Term: 1}
	if err := s.appendEntry(&entry); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Node(9); !ok {
		t.Fatalf("node 9 should be present after offer")
	}
	if err := s.truncateFrom(entry.Index); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Node(9); ok {
		t.Fatalf("node 9 should be gone after the offering entry is truncated")
	}
}

// A voting change only takes effect at apply time; truncating it before
// commit needs no reversal beyond clearing the in-flight flag.
func TestTruncateVotingChangeNeedsNoTableReversal(t *testing.T) {
	cap := newFakeCapability()
	s, err := NewServer(Config{SelfID: 1, InitialNodes: []NodeConfig{{ID: 9, Voting: false}}}, cap)
	if err != nil {
		t.Fatal(err)
	}
	s.role = Leader
	entry := Entry{Type: EntryAddNode, Payload: EncodeNodeRef(9, nil), Term: 1}
	if err := s.appendEntry(&entry); err != nil {
		t.Fatal(err)
	}
	if !s.VotingChangeInFlight() {
		t.Fatalf("voting change should be marked in flight after offer")
	}
	node, _ := s.Node(9)
	if node.Voting {
		t.Fatalf("node 9 must not become voting before the entry applies")
	}
	if err := s.truncateFrom(entry.Index); err != nil {
		t.Fatal(err)
	}
	if s.VotingChangeInFlight() {
		t.Fatalf("in-flight flag should clear once the entry is truncated")
	}
	node, _ = s.Node(9)
	if node.Voting {
		t.Fatalf("node 9 should still be non-voting")
	}
}
