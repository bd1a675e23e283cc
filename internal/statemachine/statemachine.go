// Package statemachine is an example user state machine: a key/value store
// backed by hashicorp/go-immutable-radix, the ApplyLog target committed
// entries are applied to.
package statemachine

import (
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/mossraft/raftcore/raft"
)

// Op is the payload format committed through raft.Server.RecvEntry for
// EntryNormal entries: a single key/value mutation.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte
}

// OpKind distinguishes a write from a delete.
type OpKind uint8

const (
	OpSet OpKind = iota
	OpDelete
)

// KV is a radix-tree-backed key/value store, safe for concurrent readers
// while a single apply goroutine owns writes.
type KV struct {
	mu   sync.RWMutex
	tree *iradix.Tree
}

// New returns an empty store.
func New() *KV {
	return &KV{tree: iradix.New()}
}

// Apply implements the ApplyLog side of raft.Capability: decode and commit
// one mutation. Membership entries carry no Op payload and are no-ops here.
func (kv *KV) Apply(entry *raft.Entry, index raft.Index) error {
	if entry.Type != raft.EntryNormal || len(entry.Payload) == 0 {
		return nil
	}
	op, err := DecodeOp(entry.Payload)
	if err != nil {
		return err
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	txn := kv.tree.Txn()
	switch op.Kind {
	case OpSet:
		txn.Insert(op.Key, op.Value)
	case OpDelete:
		txn.Delete(op.Key)
	}
	kv.tree = txn.Commit()
	return nil
}

// Get returns the current value for key, if present.
func (kv *KV) Get(key []byte) ([]byte, bool) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.tree.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Len returns the number of keys currently stored.
func (kv *KV) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return kv.tree.Len()
}

// Walk visits every key/value pair in lexical order.
func (kv *KV) Walk(fn func(key, value []byte) bool) {
	kv.mu.RLock()
	root := kv.tree
	kv.mu.RUnlock()
	root.Root().Walk(func(k []byte, v interface{}) bool {
		return fn(k, v.([]byte))
	})
}
