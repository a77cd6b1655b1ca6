package grpc

import (
	"context"

	"google.golang.org/grpc"

	"barge/raft"
)

const serviceName = "barge.raft.RaftTransport"

// RaftTransportServer is implemented by anything that can answer the two
// inbound RPCs. A *raft.Node does not satisfy it directly (its
// HandleRequestVote / HandleAppendEntries take no context and return no
// error); nodeServer below adapts it.
type RaftTransportServer interface {
	RequestVote(ctx context.Context, req *raft.RequestVoteRequest) (*raft.RequestVoteResponse, error)
	AppendEntries(ctx context.Context, req *raft.AppendEntriesRequest) (*raft.AppendEntriesResponse, error)
}

// nodeServer adapts a *raft.Node's handler methods (which take no
// context and return no error, since the core never blocks or fails) to
// the RaftTransportServer shape the generated-style handlers expect.
type nodeServer struct {
	node *raft.Node
}

func (s nodeServer) RequestVote(_ context.Context, req *raft.RequestVoteRequest) (*raft.RequestVoteResponse, error) {
	return s.node.HandleRequestVote(req), nil
}

func (s nodeServer) AppendEntries(_ context.Context, req *raft.AppendEntriesRequest) (*raft.AppendEntriesResponse, error) {
	return s.node.HandleAppendEntries(req), nil
}

func _RaftTransport_RequestVote_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(raft.RequestVoteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftTransportServer).RequestVote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/RequestVote",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftTransportServer).RequestVote(ctx, req.(*raft.RequestVoteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _RaftTransport_AppendEntries_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(raft.AppendEntriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftTransportServer).AppendEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/AppendEntries",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftTransportServer).AppendEntries(ctx, req.(*raft.AppendEntriesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// emits for a two-method unary service; see the package doc in wire.go
// for why it is hand-written here.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RaftTransportServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RequestVote",
			Handler:    _RaftTransport_RequestVote_Handler,
		},
		{
			MethodName: "AppendEntries",
			Handler:    _RaftTransport_AppendEntries_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "barge/raft.proto",
}
