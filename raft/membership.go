package raft

import "encoding/binary"

// EncodeNodeRef builds the payload for ADD_NONVOTING_NODE / ADD_NODE /
// DEMOTE_NODE / REMOVE_NODE entries: a 4-byte big-endian node ID followed
// by opaque host-supplied user data.
func EncodeNodeRef(id NodeID, udata []byte) []byte {
	out := make([]byte, 4+len(udata))
	binary.BigEndian.PutUint32(out, id)
	copy(out[4:], udata)
	return out
}

// DecodeNodeRef is the inverse of EncodeNodeRef.
func DecodeNodeRef(payload []byte) (NodeID, []byte) {
	if len(payload) < 4 {
		return 0, nil
	}
	id := binary.BigEndian.Uint32(payload)
	var udata []byte
	if len(payload) > 4 {
		udata = payload[4:]
	}
	return id, udata
}

// membership interprets configuration-change log entries on behalf of a
// Server and maintains its node table, per spec.md section 4.3. Per design
// note 9's resolved policy: non-voting adds take effect at offer time (so
// a leader can start replicating to a new peer immediately); every voting
// change (ADD_NODE, DEMOTE_NODE, REMOVE_NODE) takes effect only at apply
// time, which is what makes those three changes safe to leave unreversed
// on truncation.
type membership struct {
	server *Server
}

func (m *membership) onOffer(e *Entry) {
	s := m.server
	switch e.Type {
	case EntryAddNonVotingNode:
		id, udata := DecodeNodeRef(e.Payload)
		if node, ok := s.nodes.Get(id); ok {
			node.Active = true
		} else {
			s.nodes.Add(&Node{
				ID:        id,
				Voting:    false,
				Active:    true,
				NextIndex: s.log.LastIndex() + 1,
				UserData:  udata,
			})
		}
		if node, ok := s.nodes.Get(id); ok {
			s.cap.MembershipEvent(node, MembershipNodeAdded)
		}
	case EntryAddNode, EntryDemoteNode, EntryRemoveNode:
		s.votingConfigChangeInFlight = true
	}
}

func (m *membership) onApply(e *Entry) {
	s := m.server
	switch e.Type {
	case EntryAddNode:
		id, _ := DecodeNodeRef(e.Payload)
		if node, ok := s.nodes.Get(id); ok {
			node.Voting = true
			s.cap.MembershipEvent(node, MembershipNodePromoted)
		}
		s.votingConfigChangeInFlight = false
	case EntryDemoteNode:
		id, _ := DecodeNodeRef(e.Payload)
		if node, ok := s.nodes.Get(id); ok {
			node.Voting = false
			s.cap.MembershipEvent(node, MembershipNodeDemoted)
		}
		s.votingConfigChangeInFlight = false
	case EntryRemoveNode:
		id, _ := DecodeNodeRef(e.Payload)
		if id == s.selfID {
			s.shutdownPending = true
		}
		if node, ok := s.nodes.Get(id); ok {
			s.cap.MembershipEvent(node, MembershipNodeRemoved)
		}
		s.nodes.Remove(id)
		s.votingConfigChangeInFlight = false
	}
}

// onPop reverses offer-time effects for entries dropped by TruncateFrom.
// Only ADD_NONVOTING_NODE has an offer-time effect to reverse; the three
// voting changes only ever flip votingConfigChangeInFlight, which must be
// cleared since the entry that set it no longer exists.
func (m *membership) onPop(e *Entry) {
	s := m.server
	switch e.Type {
	case EntryAddNonVotingNode:
		id, _ := DecodeNodeRef(e.Payload)
		s.nodes.Remove(id)
	case EntryAddNode, EntryDemoteNode, EntryRemoveNode:
		s.votingConfigChangeInFlight = false
	}
}
