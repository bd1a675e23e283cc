package raft

import "sort"

// nodeTable is the mapping from node ID to Node, per spec.md section 4.3.
// The self-node is always present.
type nodeTable struct {
	byID   map[NodeID]*Node
	selfID NodeID
}

func newNodeTable(selfID NodeID) *nodeTable {
	return &nodeTable{byID: make(map[NodeID]*Node), selfID: selfID}
}

func (t *nodeTable) Add(n *Node) { t.byID[n.ID] = n }

func (t *nodeTable) Remove(id NodeID) { delete(t.byID, id) }

func (t *nodeTable) Get(id NodeID) (*Node, bool) {
	n, ok := t.byID[id]
	return n, ok
}

func (t *nodeTable) Self() *Node { return t.byID[t.selfID] }

// All returns every node, ordered by ID for deterministic iteration
// (broadcast order, test fixtures).
func (t *nodeTable) All() []*Node {
	out := make([]*Node, 0, len(t.byID))
	for _, n := range t.byID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Peers returns every node except self, in ID order.
func (t *nodeTable) Peers() []*Node {
	out := make([]*Node, 0, len(t.byID))
	for _, n := range t.byID {
		if n.ID == t.selfID {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *nodeTable) votingActiveCount() int {
	n := 0
	for _, node := range t.byID {
		if node.Voting && node.Active {
			n++
		}
	}
	return n
}
