package raft

// LogEntry is a single replicated command. Its storage and application are
// out of scope for this core; only the term/index/payload fields needed by
// the election state machine are carried here.
type LogEntry struct {
	Term    uint64
	Index   uint64
	Payload []byte
}

// AppendEntriesRequest is sent by a leader to replicate entries or, when
// Entries is empty, as a heartbeat.
type AppendEntriesRequest struct {
	Term         uint64
	LeaderID     string
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []*LogEntry
	LeaderCommit uint64
}

// AppendEntriesResponse is the follower's reply to AppendEntriesRequest.
type AppendEntriesResponse struct {
	Term    uint64
	Success bool
}

// RequestVoteRequest is sent by a candidate soliciting a vote.
type RequestVoteRequest struct {
	Term         uint64
	CandidateID  string
	LastLogIndex uint64
	LastLogTerm  uint64
}

// RequestVoteResponse is a peer's reply to RequestVoteRequest.
type RequestVoteResponse struct {
	Term    uint64
	Granted bool
}
