package raft

// All four handlers follow the same discipline: take the lock, mutate,
// record what deferred work is needed, release the lock, THEN perform
// outbound I/O and spawn timer tasks. None of that deferred work runs
// while st.mu is held.

// HandleRequestVote implements receive_request_vote_request: grant or
// deny a vote, possibly adopting a higher term and falling back to
// Follower.
//
// Q1 resolution: a follower created here (by adopting a higher term) is
// guarded by a heartbeat watchdog, not an election watchdog — only
// Candidates are ever guarded by the election watchdog.
func (n *Node) HandleRequestVote(req *RequestVoteRequest) *RequestVoteResponse {
	n.st.mu.Lock()

	if req.Term < n.st.term {
		resp := &RequestVoteResponse{Term: n.st.term, Granted: false}
		n.st.mu.Unlock()
		return resp
	}

	if req.Term > n.st.term {
		oldRole := n.st.role
		n.st.role = Follower
		n.st.term = req.Term
		n.st.votedFor = req.CandidateID
		n.st.tick++
		newTick := n.st.tick
		n.st.mu.Unlock()

		n.logger.LogStateChange(oldRole, Follower, req.Term)
		n.logger.LogVoteGranted(req.CandidateID, req.Term)
		n.persist(req.Term, req.CandidateID)
		n.spawnHeartbeatWatchdog(newTick)

		return &RequestVoteResponse{Term: req.Term, Granted: true}
	}

	// req.Term == n.st.term: grant at most once per term.
	if n.st.votedFor == "" || n.st.votedFor == req.CandidateID {
		n.st.votedFor = req.CandidateID
		term := n.st.term
		n.st.mu.Unlock()

		n.logger.LogVoteGranted(req.CandidateID, term)
		n.persist(term, req.CandidateID)

		return &RequestVoteResponse{Term: term, Granted: true}
	}

	term := n.st.term
	votedFor := n.st.votedFor
	n.st.mu.Unlock()

	n.logger.LogVoteDenied(req.CandidateID, term, "already voted for "+votedFor+" this term")
	return &RequestVoteResponse{Term: term, Granted: false}
}

// HandleRequestVoteResponse implements receive_request_vote_response.
//
// Q2 resolution: reaching vote_threshold explicitly transitions role to
// Leader, bumps tick, and begins heartbeat emission.
// Q3 resolution: a losing response carrying a higher term steps the node
// down to Follower (not Candidate) and starts a heartbeat watchdog.
func (n *Node) HandleRequestVoteResponse(resp *RequestVoteResponse) {
	n.st.mu.Lock()
	if n.st.role != Candidate {
		n.st.mu.Unlock()
		return
	}

	if resp.Granted {
		n.st.voteCount++
		if n.st.voteCount >= n.cfg.VoteThreshold() {
			oldRole := n.st.role
			n.st.role = Leader
			n.st.tick++
			newTick := n.st.tick
			term := n.st.term
			votes := n.st.voteCount
			threshold := n.cfg.VoteThreshold()
			n.st.mu.Unlock()

			n.logger.LogStateChange(oldRole, Leader, term)
			n.logger.LogElectionWon(term, votes, threshold)
			n.spawnHeartbeatEmitter(newTick)
			return
		}
		n.st.mu.Unlock()
		return
	}

	if resp.Term > n.st.term {
		oldRole := n.st.role
		oldTerm := n.st.term
		n.st.role = Follower
		n.st.term = resp.Term
		n.st.votedFor = ""
		n.st.tick++
		newTick := n.st.tick
		n.st.mu.Unlock()

		n.logger.LogStateChange(oldRole, Follower, resp.Term)
		n.logger.LogStepDown(oldTerm, resp.Term)
		n.persist(resp.Term, "")
		n.spawnHeartbeatWatchdog(newTick)
		return
	}

	n.st.mu.Unlock()
}

// HandleAppendEntries implements receive_append_entries_request.
func (n *Node) HandleAppendEntries(req *AppendEntriesRequest) *AppendEntriesResponse {
	n.st.mu.Lock()

	if req.Term < n.st.term {
		resp := &AppendEntriesResponse{Term: n.st.term, Success: false}
		n.st.mu.Unlock()
		return resp
	}

	if req.Term == n.st.term && n.st.role == Leader {
		conflictTerm := n.st.term
		n.st.role = Candidate
		n.st.term++
		n.st.voteCount = 0
		n.st.votedFor = n.cfg.NodeID
		n.st.tick++
		newTick := n.st.tick
		newTerm := n.st.term
		n.st.mu.Unlock()

		n.logger.LogLeaderConflict(conflictTerm)
		n.persist(newTerm, n.cfg.NodeID)
		n.spawnElectionWatchdog(newTick)
		n.broadcastRequestVote(n.context(), newTerm)

		return &AppendEntriesResponse{Term: conflictTerm, Success: false}
	}

	// Valid leader contact: adopt term, become/stay Follower, reset the
	// heartbeat watchdog.
	oldRole := n.st.role
	if req.Term > n.st.term {
		n.st.votedFor = ""
	}
	n.st.term = req.Term
	n.st.role = Follower
	n.st.tick++
	newTick := n.st.tick
	votedFor := n.st.votedFor
	n.st.mu.Unlock()

	if oldRole != Follower {
		n.logger.LogStateChange(oldRole, Follower, req.Term)
	}
	if len(req.Entries) == 0 {
		n.logger.LogHeartbeatReceived(req.LeaderID, req.Term)
	} else {
		n.logger.LogAppendEntries(req.LeaderID, req.Term, req.PrevLogIndex, len(req.Entries))
	}
	n.persist(req.Term, votedFor)
	n.spawnHeartbeatWatchdog(newTick)

	// Log-consistency checks (prevLogIndex/prevLogTerm matching) are a
	// log-replication concern out of scope for this core; a leader
	// election core always succeeds a term-valid AppendEntries.
	return &AppendEntriesResponse{Term: req.Term, Success: true}
}

// HandleAppendEntriesResponse implements receive_append_entries_response.
func (n *Node) HandleAppendEntriesResponse(resp *AppendEntriesResponse) {
	n.st.mu.Lock()
	if n.st.role != Leader {
		n.st.mu.Unlock()
		return
	}

	if !resp.Success && resp.Term > n.st.term {
		oldTerm := n.st.term
		n.st.role = Follower
		n.st.term = resp.Term
		n.st.votedFor = ""
		n.st.tick++
		newTick := n.st.tick
		n.st.mu.Unlock()

		n.logger.LogStateChange(Leader, Follower, resp.Term)
		n.logger.LogStepDown(oldTerm, resp.Term)
		n.persist(resp.Term, "")
		n.spawnHeartbeatWatchdog(newTick)
		return
	}

	n.st.mu.Unlock()
}
