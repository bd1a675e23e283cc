package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/mossraft/raftcore/raft"
)

// serviceName matches the would-be proto package.service name; there is no
// .proto file backing it since the wire format is hand-rolled, but grpc
// still routes on this string.
const serviceName = "raft.RaftTransport"

// Handler is implemented by the host-side orchestrator that owns a
// *raft.Server and answers incoming RPCs on its behalf.
type Handler interface {
	HandleRequestVote(ctx context.Context, req *raft.RequestVoteRequest) (*raft.RequestVoteResponse, error)
	HandleAppendEntries(ctx context.Context, req *raft.AppendEntriesRequest) (*raft.AppendEntriesResponse, error)
}

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc would
// have generated from a raft.proto service definition.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestVote", Handler: requestVoteHandler},
		{MethodName: "AppendEntries", Handler: appendEntriesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/transport/service.go",
}

func requestVoteHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(raft.RequestVoteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).HandleRequestVote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/RequestVote"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Handler).HandleRequestVote(ctx, req.(*raft.RequestVoteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func appendEntriesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(raft.AppendEntriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).HandleAppendEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/AppendEntries"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Handler).HandleAppendEntries(ctx, req.(*raft.AppendEntriesRequest))
	}
	return interceptor(ctx, in, info, handler)
}
