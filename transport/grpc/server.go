package grpc

import (
	"net"

	"google.golang.org/grpc"

	"barge/raft"
)

// Server listens for inbound RequestVote/AppendEntries RPCs and routes
// them into a single *raft.Node, mirroring the teacher's GRPCRaftServer
// lifecycle (construct, Start, Stop) but over the hand-rolled wire codec
// instead of the missing generated proto package.
type Server struct {
	node *raft.Node
	gs   *grpc.Server
	lis  net.Listener
}

// NewServer builds a Server bound to node; call Start to begin serving.
func NewServer(node *raft.Node) *Server {
	return &Server{node: node}
}

// Start opens a listener on address and serves until Stop is called. It
// blocks, like grpc.Server.Serve, so callers run it in its own goroutine.
func (s *Server) Start(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.lis = lis

	s.gs = grpc.NewServer()
	s.gs.RegisterService(&serviceDesc, nodeServer{node: s.node})

	return s.gs.Serve(lis)
}

// Stop gracefully drains in-flight RPCs and closes the listener.
func (s *Server) Stop() {
	if s.gs != nil {
		s.gs.GracefulStop()
	}
}

// Addr returns the address the server is bound to, or "" before Start
// has been called.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}
