package grpc

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"barge/raft"
	"barge/registry"
)

// Client implements raft.Transport by dialing peers over gRPC, caching
// one connection per peer URI the way the teacher's GRPCRaftClient
// cached connections per node address.
type Client struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn

	// reg, if non-nil, is touched with the dial address of every peer
	// a reply is successfully received from. It is purely an
	// operational-visibility hook: the raft core never reads it back.
	reg *registry.Registry
}

// NewClient returns a Client with an empty connection cache. reg may be
// nil, in which case no peer liveness is recorded.
func NewClient(reg *registry.Registry) *Client {
	return &Client{conns: make(map[string]*grpc.ClientConn), reg: reg}
}

func (c *Client) connFor(peerURI string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[peerURI]; ok {
		return conn, nil
	}

	conn, err := grpc.NewClient(peerURI, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	c.conns[peerURI] = conn
	return conn, nil
}

func (c *Client) RequestVote(ctx context.Context, peerURI string, req *raft.RequestVoteRequest) (*raft.RequestVoteResponse, error) {
	conn, err := c.connFor(peerURI)
	if err != nil {
		return nil, &raft.TransportError{PeerURI: peerURI, Err: err}
	}

	resp := new(raft.RequestVoteResponse)
	method := "/" + serviceName + "/RequestVote"
	if err := conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, &raft.TransportError{PeerURI: peerURI, Err: err}
	}
	if c.reg != nil {
		c.reg.TouchByAddress(peerURI)
	}
	return resp, nil
}

func (c *Client) AppendEntries(ctx context.Context, peerURI string, req *raft.AppendEntriesRequest) (*raft.AppendEntriesResponse, error) {
	conn, err := c.connFor(peerURI)
	if err != nil {
		return nil, &raft.TransportError{PeerURI: peerURI, Err: err}
	}

	resp := new(raft.AppendEntriesResponse)
	method := "/" + serviceName + "/AppendEntries"
	if err := conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, &raft.TransportError{PeerURI: peerURI, Err: err}
	}
	if c.reg != nil {
		c.reg.TouchByAddress(peerURI)
	}
	return resp, nil
}

// Close tears down every cached connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for uri, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", uri, err)
		}
	}
	c.conns = make(map[string]*grpc.ClientConn)
	return firstErr
}

var _ raft.Transport = (*Client)(nil)
