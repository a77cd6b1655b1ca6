package raft

import (
	"context"
	"time"
)

// spawnHeartbeatWatchdog starts wait_for_heartbeat(expected_tick) as a
// goroutine. A follower promotes itself to candidate if this watchdog
// fires before a valid leader contact bumps tick past expectedTick.
func (n *Node) spawnHeartbeatWatchdog(expectedTick uint64) {
	go n.waitForHeartbeat(n.context(), expectedTick)
}

// spawnElectionWatchdog starts wait_for_election(expected_tick) as a
// goroutine. A candidate re-runs its election at a higher term if this
// watchdog fires before the election concludes.
func (n *Node) spawnElectionWatchdog(expectedTick uint64) {
	go n.waitForElection(n.context(), expectedTick)
}

// spawnHeartbeatEmitter starts the leader's periodic heartbeat send
// loop, gated by the same tick discipline as the watchdogs.
func (n *Node) spawnHeartbeatEmitter(expectedTick uint64) {
	go n.emitHeartbeats(n.context(), expectedTick)
}

func (n *Node) waitForHeartbeat(ctx context.Context, expectedTick uint64) {
	select {
	case <-time.After(n.cfg.PickHeartbeatTimeout()):
	case <-ctx.Done():
		return
	}

	n.st.mu.Lock()
	if n.st.tick != expectedTick || n.st.role != Follower {
		n.st.mu.Unlock()
		n.logger.LogWatchdogSuperseded("heartbeat", expectedTick)
		return
	}

	oldRole := n.st.role
	n.st.role = Candidate
	n.st.term++
	n.st.voteCount = 0
	n.st.votedFor = n.cfg.NodeID
	n.st.tick++
	nextTick := n.st.tick
	term := n.st.term
	n.st.mu.Unlock()

	n.logger.LogStateChange(oldRole, Candidate, term)
	n.logger.LogElectionStart(term)
	n.persist(term, n.cfg.NodeID)

	n.spawnElectionWatchdog(nextTick)
	n.broadcastRequestVote(ctx, term)
}

func (n *Node) waitForElection(ctx context.Context, expectedTick uint64) {
	for {
		select {
		case <-time.After(n.cfg.PickElectionTimeout()):
		case <-ctx.Done():
			return
		}

		var term uint64

		n.st.mu.Lock()
		if n.st.tick != expectedTick || n.st.role != Candidate {
			n.st.mu.Unlock()
			n.logger.LogWatchdogSuperseded("election", expectedTick)
			return
		}

		n.st.term++
		n.st.voteCount = 0
		n.st.votedFor = n.cfg.NodeID
		n.st.tick++
		expectedTick = n.st.tick
		term = n.st.term
		n.st.mu.Unlock()

		n.logger.LogElectionStart(term)
		n.persist(term, n.cfg.NodeID)
		n.broadcastRequestVote(ctx, term)
	}
}

func (n *Node) emitHeartbeats(ctx context.Context, expectedTick uint64) {
	for {
		n.st.mu.Lock()
		stale := n.st.tick != expectedTick || n.st.role != Leader
		term := n.st.term
		commit := uint64(0)
		n.st.mu.Unlock()

		if stale {
			n.logger.LogWatchdogSuperseded("heartbeat-emitter", expectedTick)
			return
		}

		n.broadcastAppendEntries(ctx, term, commit)

		select {
		case <-time.After(n.cfg.SendHeartbeatPeriod):
		case <-ctx.Done():
			return
		}
	}
}

func (n *Node) broadcastRequestVote(ctx context.Context, term uint64) {
	lastLogIndex, lastLogTerm := uint64(0), uint64(0)

	req := &RequestVoteRequest{
		Term:         term,
		CandidateID:  n.cfg.NodeID,
		LastLogIndex: lastLogIndex,
		LastLogTerm:  lastLogTerm,
	}

	for _, peer := range n.cfg.PeerURIs {
		go func(peerURI string) {
			resp, err := n.transport.RequestVote(ctx, peerURI, req)
			if err != nil {
				n.logger.Debug("RequestVote to %s failed: %v", peerURI, err)
				return
			}
			n.HandleRequestVoteResponse(resp)
		}(peer)
	}
}

func (n *Node) broadcastAppendEntries(ctx context.Context, term, leaderCommit uint64) {
	n.logger.LogHeartbeatSent(term, len(n.cfg.PeerURIs))

	req := &AppendEntriesRequest{
		Term:         term,
		LeaderID:     n.cfg.NodeID,
		PrevLogIndex: 0,
		PrevLogTerm:  0,
		Entries:      nil,
		LeaderCommit: leaderCommit,
	}

	for _, peer := range n.cfg.PeerURIs {
		go func(peerURI string) {
			resp, err := n.transport.AppendEntries(ctx, peerURI, req)
			if err != nil {
				n.logger.Debug("AppendEntries to %s failed: %v", peerURI, err)
				return
			}
			n.HandleAppendEntriesResponse(resp)
		}(peer)
	}
}
