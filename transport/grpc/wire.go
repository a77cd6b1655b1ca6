// Package grpc implements the Transport collaborator contract (see
// raft.Transport) over gRPC.
//
// No protoc-generated Go package was available to carry over from the
// teacher repo (its kvstore/proto package was not part of the retrieved
// sources), so the wire format below is produced by hand against
// google.golang.org/protobuf/encoding/protowire — the same stable
// low-level primitives protoc-gen-go itself builds on. The byte layout
// is the ordinary protobuf wire encoding for the field-exact messages in
// spec.md §6; any protoc-gen-go client decoding the same field numbers
// would read it correctly.
package grpc

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"barge/raft"
)

// Field numbers, assigned in struct-declaration order.
const (
	fieldLogEntryTerm    = 1
	fieldLogEntryIndex   = 2
	fieldLogEntryPayload = 3

	fieldRVReqTerm         = 1
	fieldRVReqCandidateID  = 2
	fieldRVReqLastLogIndex = 3
	fieldRVReqLastLogTerm  = 4

	fieldRVRespTerm    = 1
	fieldRVRespGranted = 2

	fieldAEReqTerm         = 1
	fieldAEReqLeaderID     = 2
	fieldAEReqPrevLogIndex = 3
	fieldAEReqPrevLogTerm  = 4
	fieldAEReqEntries      = 5
	fieldAEReqLeaderCommit = 6

	fieldAERespTerm    = 1
	fieldAERespSuccess = 2
)

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	var i uint64
	if v {
		i = 1
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, i)
}

func appendUint64(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func marshalLogEntry(e *raft.LogEntry) []byte {
	if e == nil {
		return nil
	}
	var b []byte
	b = appendUint64(b, fieldLogEntryTerm, e.Term)
	b = appendUint64(b, fieldLogEntryIndex, e.Index)
	if len(e.Payload) > 0 {
		b = appendBytes(b, fieldLogEntryPayload, e.Payload)
	}
	return b
}

func unmarshalLogEntry(data []byte) (*raft.LogEntry, error) {
	e := &raft.LogEntry{}
	return e, walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldLogEntryTerm:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			e.Term = v
			return n, nil
		case fieldLogEntryIndex:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			e.Index = v
			return n, nil
		case fieldLogEntryPayload:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			e.Payload = append([]byte(nil), v...)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}

// walkFields iterates the length-delimited submessage/top-level message
// encoded in data, dispatching each field to fn. fn returns the number
// of bytes of b it consumed for that field's value (not including the
// tag), matching the protowire Consume* convention.
func walkFields(data []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		consumed, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if consumed < 0 {
			return fmt.Errorf("field %d: malformed", num)
		}
		b = b[consumed:]
	}
	return nil
}

func marshalRequestVoteRequest(req *raft.RequestVoteRequest) []byte {
	var b []byte
	b = appendUint64(b, fieldRVReqTerm, req.Term)
	b = appendString(b, fieldRVReqCandidateID, req.CandidateID)
	b = appendUint64(b, fieldRVReqLastLogIndex, req.LastLogIndex)
	b = appendUint64(b, fieldRVReqLastLogTerm, req.LastLogTerm)
	return b
}

func unmarshalRequestVoteRequest(data []byte) (*raft.RequestVoteRequest, error) {
	req := &raft.RequestVoteRequest{}
	return req, walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldRVReqTerm:
			v, n := protowire.ConsumeVarint(b)
			req.Term = v
			return checkedN(n)
		case fieldRVReqCandidateID:
			v, n := protowire.ConsumeString(b)
			req.CandidateID = v
			return checkedN(n)
		case fieldRVReqLastLogIndex:
			v, n := protowire.ConsumeVarint(b)
			req.LastLogIndex = v
			return checkedN(n)
		case fieldRVReqLastLogTerm:
			v, n := protowire.ConsumeVarint(b)
			req.LastLogTerm = v
			return checkedN(n)
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}

func marshalRequestVoteResponse(resp *raft.RequestVoteResponse) []byte {
	var b []byte
	b = appendUint64(b, fieldRVRespTerm, resp.Term)
	b = appendBool(b, fieldRVRespGranted, resp.Granted)
	return b
}

func unmarshalRequestVoteResponse(data []byte) (*raft.RequestVoteResponse, error) {
	resp := &raft.RequestVoteResponse{}
	return resp, walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldRVRespTerm:
			v, n := protowire.ConsumeVarint(b)
			resp.Term = v
			return checkedN(n)
		case fieldRVRespGranted:
			v, n := protowire.ConsumeVarint(b)
			resp.Granted = v != 0
			return checkedN(n)
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}

func marshalAppendEntriesRequest(req *raft.AppendEntriesRequest) []byte {
	var b []byte
	b = appendUint64(b, fieldAEReqTerm, req.Term)
	b = appendString(b, fieldAEReqLeaderID, req.LeaderID)
	b = appendUint64(b, fieldAEReqPrevLogIndex, req.PrevLogIndex)
	b = appendUint64(b, fieldAEReqPrevLogTerm, req.PrevLogTerm)
	for _, e := range req.Entries {
		b = appendBytes(b, fieldAEReqEntries, marshalLogEntry(e))
	}
	b = appendUint64(b, fieldAEReqLeaderCommit, req.LeaderCommit)
	return b
}

func unmarshalAppendEntriesRequest(data []byte) (*raft.AppendEntriesRequest, error) {
	req := &raft.AppendEntriesRequest{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldAEReqTerm:
			v, n := protowire.ConsumeVarint(b)
			req.Term = v
			return checkedN(n)
		case fieldAEReqLeaderID:
			v, n := protowire.ConsumeString(b)
			req.LeaderID = v
			return checkedN(n)
		case fieldAEReqPrevLogIndex:
			v, n := protowire.ConsumeVarint(b)
			req.PrevLogIndex = v
			return checkedN(n)
		case fieldAEReqPrevLogTerm:
			v, n := protowire.ConsumeVarint(b)
			req.PrevLogTerm = v
			return checkedN(n)
		case fieldAEReqEntries:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			entry, err := unmarshalLogEntry(v)
			if err != nil {
				return 0, err
			}
			req.Entries = append(req.Entries, entry)
			return n, nil
		case fieldAEReqLeaderCommit:
			v, n := protowire.ConsumeVarint(b)
			req.LeaderCommit = v
			return checkedN(n)
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	return req, err
}

func marshalAppendEntriesResponse(resp *raft.AppendEntriesResponse) []byte {
	var b []byte
	b = appendUint64(b, fieldAERespTerm, resp.Term)
	b = appendBool(b, fieldAERespSuccess, resp.Success)
	return b
}

func unmarshalAppendEntriesResponse(data []byte) (*raft.AppendEntriesResponse, error) {
	resp := &raft.AppendEntriesResponse{}
	return resp, walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldAERespTerm:
			v, n := protowire.ConsumeVarint(b)
			resp.Term = v
			return checkedN(n)
		case fieldAERespSuccess:
			v, n := protowire.ConsumeVarint(b)
			resp.Success = v != 0
			return checkedN(n)
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}

// checkedN converts a protowire Consume* result into the (n, error)
// shape walkFields expects, since the varint/string consumers return a
// value alongside n rather than an error directly.
func checkedN(n int) (int, error) {
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}
