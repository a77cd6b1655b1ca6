package grpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"

	"barge/raft"
)

// codecName is sent as the gRPC content-subtype (content-type becomes
// "application/grpc+raftwire"); the server selects this codec for
// decoding based on that header, the documented grpc-go mechanism for a
// non-default wire format (see encoding.Codec and
// grpc.CallContentSubtype).
const codecName = "raftwire"

func init() {
	encoding.RegisterCodec(wireCodec{})
}

// wireCodec implements encoding.Codec over the hand-rolled protobuf
// wire format in wire.go, for the four raft message types. It never sees
// any other type, since it is only ever selected for this package's own
// RPCs.
type wireCodec struct{}

func (wireCodec) Name() string { return codecName }

func (wireCodec) Marshal(v interface{}) ([]byte, error) {
	switch m := v.(type) {
	case *raft.RequestVoteRequest:
		return marshalRequestVoteRequest(m), nil
	case *raft.RequestVoteResponse:
		return marshalRequestVoteResponse(m), nil
	case *raft.AppendEntriesRequest:
		return marshalAppendEntriesRequest(m), nil
	case *raft.AppendEntriesResponse:
		return marshalAppendEntriesResponse(m), nil
	default:
		return nil, fmt.Errorf("raftwire: cannot marshal %T", v)
	}
}

func (wireCodec) Unmarshal(data []byte, v interface{}) error {
	switch m := v.(type) {
	case *raft.RequestVoteRequest:
		parsed, err := unmarshalRequestVoteRequest(data)
		if err != nil {
			return err
		}
		*m = *parsed
		return nil
	case *raft.RequestVoteResponse:
		parsed, err := unmarshalRequestVoteResponse(data)
		if err != nil {
			return err
		}
		*m = *parsed
		return nil
	case *raft.AppendEntriesRequest:
		parsed, err := unmarshalAppendEntriesRequest(data)
		if err != nil {
			return err
		}
		*m = *parsed
		return nil
	case *raft.AppendEntriesResponse:
		parsed, err := unmarshalAppendEntriesResponse(data)
		if err != nil {
			return err
		}
		*m = *parsed
		return nil
	default:
		return fmt.Errorf("raftwire: cannot unmarshal into %T", v)
	}
}
