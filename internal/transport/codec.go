// Package transport wires raft.Capability's SendRequestVote/SendAppendEntries
// onto the network using grpc-go. Rather than depend on
// protoc-gen-go/protoc-gen-go-grpc generated descriptor code, it hand-writes
// a grpc.ServiceDesc against the public low-level API and registers a codec
// backed by internal/wire's protowire encoding.
package transport

import (
	"fmt"

	"google.golang.org/grpc/encoding"

	"github.com/mossraft/raftcore/internal/wire"
	"github.com/mossraft/raftcore/raft"
)

// codecName is registered with grpc's encoding package in place of "proto".
const codecName = "raftwire"

func init() {
	encoding.RegisterCodec(wireCodec{})
}

// wireCodec adapts internal/wire's per-message functions to grpc's generic
// encoding.Codec interface, which only knows how to mint bytes from an
// interface{}.
type wireCodec struct{}

func (wireCodec) Name() string { return codecName }

func (wireCodec) Marshal(v interface{}) ([]byte, error) {
	switch m := v.(type) {
	case *raft.RequestVoteRequest:
		return wire.MarshalRequestVote(m), nil
	case *raft.RequestVoteResponse:
		return wire.MarshalRequestVoteResponse(m), nil
	case *raft.AppendEntriesRequest:
		return wire.MarshalAppendEntries(m), nil
	case *raft.AppendEntriesResponse:
		return wire.MarshalAppendEntriesResponse(m), nil
	default:
		return nil, fmt.Errorf("transport: codec cannot marshal %T", v)
	}
}

func (wireCodec) Unmarshal(data []byte, v interface{}) error {
	switch m := v.(type) {
	case *raft.RequestVoteRequest:
		req, err := wire.UnmarshalRequestVote(data)
		if err != nil {
			return err
		}
		*m = *req
	case *raft.RequestVoteResponse:
		resp, err := wire.UnmarshalRequestVoteResponse(data)
		if err != nil {
			return err
		}
		*m = *resp
	case *raft.AppendEntriesRequest:
		req, err := wire.UnmarshalAppendEntries(data)
		if err != nil {
			return err
		}
		*m = *req
	case *raft.AppendEntriesResponse:
		resp, err := wire.UnmarshalAppendEntriesResponse(data)
		if err != nil {
			return err
		}
		*m = *resp
	default:
		return fmt.Errorf("transport: codec cannot unmarshal into %T", v)
	}
	return nil
}
