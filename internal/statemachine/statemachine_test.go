package statemachine

import (
	"testing"

	"github.com/mossraft/raftcore/raft"
)

func TestApplySetAndDelete(t *testing.T) {
	kv := New()

	setEntry := &raft.Entry{Type: raft.EntryNormal, Payload: EncodeOp(Op{Kind: OpSet, Key: []byte("k"), Value: []byte("v1")})}
	if err := kv.Apply(setEntry, 1); err != nil {
		t.Fatalf("Apply(set): %v", err)
	}
	v, ok := kv.Get([]byte("k"))
	if !ok || string(v) != "v1" {
		t.Fatalf("Get after set = %q, ok=%v", v, ok)
	}

	delEntry := &raft.Entry{Type: raft.EntryNormal, Payload: EncodeOp(Op{Kind: OpDelete, Key: []byte("k")})}
	if err := kv.Apply(delEntry, 2); err != nil {
		t.Fatalf("Apply(delete): %v", err)
	}
	if _, ok := kv.Get([]byte("k")); ok {
		t.Fatalf("key should be gone after delete")
	}
}

func TestApplyIgnoresMembershipEntries(t *testing.T) {
	kv := New()
	entry := &raft.Entry{Type: raft.EntryAddNode, Payload: nil}
	if err := kv.Apply(entry, 1); err != nil {
		t.Fatalf("Apply(membership): %v", err)
	}
	if kv.Len() != 0 {
		t.Fatalf("membership entries should not mutate the tree")
	}
}

func TestWalkVisitsAllKeys(t *testing.T) {
	kv := New()
	for _, k := range []string{"a", "b", "c"} {
		e := &raft.Entry{Type: raft.EntryNormal, Payload: EncodeOp(Op{Kind: OpSet, Key: []byte(k), Value: []byte(k + k)})}
		if err := kv.Apply(e, 1); err != nil {
			t.Fatal(err)
		}
	}
	seen := map[string]string{}
	kv.Walk(func(key, value []byte) bool {
		seen[string(key)] = string(value)
		return true
	})
	if len(seen) != 3 || seen["a"] != "aa" || seen["b"] != "bb" || seen["c"] != "cc" {
		t.Fatalf("unexpected walk result: %v", seen)
	}
}
