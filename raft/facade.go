// Package raft implements the core of a Raft-style leader-election
// engine: the per-node role state machine and the timer/message-driven
// coordination that elects and maintains a single leader among an
// ensemble of peers.
//
// Log replication beyond the term/ack fields needed for election,
// transport wire plumbing, and durable term/vote storage are treated as
// external collaborators (Transport, TermVoteStore) specified only at
// their boundaries; see transport/grpc and persistence for the shipped
// implementations.
package raft

import (
	"context"
	"fmt"
	"sync"

	"barge/config"
)

// Node is the lifecycle facade: it owns the state record, constructs it
// from a validated Config, starts the initial follower watchdog, and
// provides a cancellation signal via context.Context.
type Node struct {
	cfg       *config.Config
	transport Transport
	store     TermVoteStore
	logger    *Logger

	st *state

	runCtx  context.Context
	cancel  context.CancelFunc
	runOnce sync.Once
}

// New validates config, constructs the node state (loading a persisted
// term/vote pair from store if one is given), and returns a handle. It
// does not start any timers; call Run for that.
func New(cfg *config.Config, transport Transport, store TermVoteStore) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, fmt.Errorf("raft: transport must not be nil")
	}

	n := &Node{
		cfg:       cfg,
		transport: transport,
		store:     store,
		logger:    NewLogger(cfg.NodeID, INFO),
		st:        &state{role: Follower},
	}

	if store != nil {
		term, votedFor, err := store.LoadTermVote()
		if err != nil {
			return nil, fmt.Errorf("raft: loading persisted term/vote: %w", err)
		}
		n.st.term = term
		n.st.votedFor = votedFor
	}

	return n, nil
}

// Run spawns the initial heartbeat watchdog with expected_tick=0 and
// blocks until ctx is cancelled. On cancel, outstanding timer tasks
// observe the cancelled context on their next wakeup and exit
// cooperatively (see timers.go). A Node may only be run once; a second
// call returns an error immediately instead of starting a duplicate set
// of timers against the same state.
func (n *Node) Run(ctx context.Context) error {
	started := false

	n.runOnce.Do(func() {
		started = true

		runCtx, cancel := context.WithCancel(ctx)
		n.runCtx = runCtx
		n.cancel = cancel

		n.logger.Info("starting as %s (term=%d)", Follower, n.st.snapshot().term)
		n.spawnHeartbeatWatchdog(0)
	})

	if !started {
		return fmt.Errorf("raft: Run called more than once")
	}

	<-n.runCtx.Done()
	return nil
}

// Shutdown cancels the node's run context; outstanding timer tasks abort
// cooperatively on their next wakeup.
func (n *Node) Shutdown() {
	if n.cancel != nil {
		n.cancel()
	}
}

// Snapshot returns the current term and role, for external observation
// (status endpoints, tests).
func (n *Node) Snapshot() (term uint64, role Role) {
	s := n.st.snapshot()
	return s.term, s.role
}

// persist writes the current term/votedFor through the optional store.
// Called outside the state lock; errors are logged, never fatal to the
// state machine (durability is a collaborator contract, not a core
// invariant).
func (n *Node) persist(term uint64, votedFor string) {
	if n.store == nil {
		return
	}
	if err := n.store.SaveTermVote(term, votedFor); err != nil {
		n.logger.Warn("failed to persist term/vote: %v", err)
	}
}

func (n *Node) context() context.Context {
	if n.runCtx != nil {
		return n.runCtx
	}
	return context.Background()
}
