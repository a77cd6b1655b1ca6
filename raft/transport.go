package raft

import "context"

// Transport is the collaborator contract for carrying the four message
// variants between peers. The core never constructs one of these itself —
// it is handed an implementation (see transport/grpc for the shipped one)
// and treats any error from either method as "no reply received": timers
// will retry naturally, so the core does not retry at this layer.
type Transport interface {
	RequestVote(ctx context.Context, peerURI string, req *RequestVoteRequest) (*RequestVoteResponse, error)
	AppendEntries(ctx context.Context, peerURI string, req *AppendEntriesRequest) (*AppendEntriesResponse, error)
}

// TransportError wraps an underlying dial/RPC failure so the core can log
// it without crashing the state machine.
type TransportError struct {
	PeerURI string
	Err     error
}

func (e *TransportError) Error() string {
	return "transport: " + e.PeerURI + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
