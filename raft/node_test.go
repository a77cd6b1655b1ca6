package raft

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"barge/config"
)

// loopbackTransport routes RPCs directly to in-process Node handlers,
// standing in for a real network transport in unit tests.
type loopbackTransport struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

func newLoopbackTransport() *loopbackTransport {
	return &loopbackTransport{nodes: make(map[string]*Node)}
}

func (t *loopbackTransport) register(uri string, n *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[uri] = n
}

func (t *loopbackTransport) unregister(uri string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.nodes, uri)
}

func (t *loopbackTransport) RequestVote(ctx context.Context, peerURI string, req *RequestVoteRequest) (*RequestVoteResponse, error) {
	t.mu.RLock()
	peer, ok := t.nodes[peerURI]
	t.mu.RUnlock()
	if !ok {
		return nil, &TransportError{PeerURI: peerURI, Err: fmt.Errorf("no such peer")}
	}
	return peer.HandleRequestVote(req), nil
}

func (t *loopbackTransport) AppendEntries(ctx context.Context, peerURI string, req *AppendEntriesRequest) (*AppendEntriesResponse, error) {
	t.mu.RLock()
	peer, ok := t.nodes[peerURI]
	t.mu.RUnlock()
	if !ok {
		return nil, &TransportError{PeerURI: peerURI, Err: fmt.Errorf("no such peer")}
	}
	return peer.HandleAppendEntries(req), nil
}

// fakeStore is an in-memory TermVoteStore test double, standing in for
// persistence.FileTermStore so tests can assert on what was persisted
// without touching disk.
type fakeStore struct {
	mu       sync.Mutex
	term     uint64
	votedFor string
}

func (s *fakeStore) SaveTermVote(term uint64, votedFor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term = term
	s.votedFor = votedFor
	return nil
}

func (s *fakeStore) LoadTermVote() (uint64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term, s.votedFor, nil
}

func testConfig(id string, peers []string) *config.Config {
	return &config.Config{
		NodeID:                   id,
		SendHeartbeatPeriod:      20 * time.Millisecond,
		SendHeartbeatIntervalMin: 5 * time.Millisecond,
		HeartbeatTimeoutMin:      60 * time.Millisecond,
		HeartbeatTimeoutMax:      100 * time.Millisecond,
		ElectionTimeoutMin:       60 * time.Millisecond,
		ElectionTimeoutMax:       100 * time.Millisecond,
		PeerURIs:                 peers,
	}
}

func newTestNode(t *testing.T, id string, peers []string, transport Transport) *Node {
	t.Helper()
	n, err := New(testConfig(id, peers), transport, nil)
	if err != nil {
		t.Fatalf("New(%s): %v", id, err)
	}
	return n
}

func newTestCluster(t *testing.T, n int) ([]*Node, *loopbackTransport) {
	t.Helper()
	transport := newLoopbackTransport()

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("node%d", i+1)
	}

	nodes := make([]*Node, n)
	for i, id := range ids {
		peers := make([]string, 0, n-1)
		for j, other := range ids {
			if j != i {
				peers = append(peers, other)
			}
		}
		nodes[i] = newTestNode(t, id, peers, transport)
		transport.register(id, nodes[i])
	}

	return nodes, transport
}

func startCluster(nodes []*Node) (context.CancelFunc, *sync.WaitGroup) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, n := range nodes {
		wg.Add(1)
		go func(n *Node) {
			defer wg.Done()
			n.Run(ctx)
		}(n)
	}
	return cancel, &wg
}

func countLeaders(nodes []*Node) int {
	count := 0
	for _, n := range nodes {
		if _, role := n.Snapshot(); role == Leader {
			count++
		}
	}
	return count
}

func TestInitialStateIsFollower(t *testing.T) {
	n := newTestNode(t, "node1", []string{"node2", "node3"}, newLoopbackTransport())

	term, role := n.Snapshot()
	if term != 0 {
		t.Errorf("expected term 0, got %d", term)
	}
	if role != Follower {
		t.Errorf("expected Follower, got %s", role)
	}
}

func TestFollowerPromotionOnHeartbeatTimeout(t *testing.T) {
	n := newTestNode(t, "node1", []string{}, newLoopbackTransport())

	cancel, wg := startCluster([]*Node{n})
	defer func() {
		cancel()
		wg.Wait()
	}()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if term, role := n.Snapshot(); role == Candidate && term == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("node never promoted itself to candidate at term 1")
}

func TestSecondRunReturnsError(t *testing.T) {
	n := newTestNode(t, "node1", []string{}, newLoopbackTransport())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for n.context() == context.Background() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := n.Run(ctx); err == nil {
		t.Fatal("expected second Run call to return an error")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("first Run returned error: %v", err)
	}
}

func TestStaleWatchdogNoOp(t *testing.T) {
	n := newTestNode(t, "node1", []string{"node2", "node3"}, newLoopbackTransport())

	n.st.mu.Lock()
	n.st.tick = 5
	n.st.mu.Unlock()

	n.runCtx = context.Background()
	n.spawnHeartbeatWatchdog(5)

	// Supersede before the watchdog's sleep elapses.
	n.st.mu.Lock()
	n.st.tick = 6
	n.st.mu.Unlock()

	time.Sleep(n.cfg.HeartbeatTimeoutMax + 50*time.Millisecond)

	snap := n.st.snapshot()
	if snap.role != Follower || snap.term != 0 || snap.tick != 6 {
		t.Errorf("stale watchdog mutated state: %+v", snap)
	}
}

func TestHigherTermRequestVoteStepsLeaderDown(t *testing.T) {
	n := newTestNode(t, "node1", []string{"node2", "node3"}, newLoopbackTransport())

	n.st.mu.Lock()
	n.st.role = Leader
	n.st.term = 3
	n.st.tick = 7
	n.st.mu.Unlock()
	n.runCtx = context.Background()

	resp := n.HandleRequestVote(&RequestVoteRequest{Term: 5, CandidateID: "node2"})
	if !resp.Granted {
		t.Fatal("expected vote to be granted")
	}

	snap := n.st.snapshot()
	if snap.role != Follower {
		t.Errorf("expected Follower, got %s", snap.role)
	}
	if snap.term != 5 {
		t.Errorf("expected term 5, got %d", snap.term)
	}
	if snap.tick != 8 {
		t.Errorf("expected tick 8, got %d", snap.tick)
	}
}

func TestSameTermAppendEntriesToLeaderDemotes(t *testing.T) {
	n := newTestNode(t, "node1", []string{"node2", "node3"}, newLoopbackTransport())

	n.st.mu.Lock()
	n.st.role = Leader
	n.st.term = 4
	n.st.tick = 9
	n.st.mu.Unlock()
	n.runCtx = context.Background()

	resp := n.HandleAppendEntries(&AppendEntriesRequest{Term: 4, LeaderID: "node2"})
	if resp.Success {
		t.Fatal("expected success=false on leader conflict")
	}
	if resp.Term != 4 {
		t.Errorf("expected response term 4, got %d", resp.Term)
	}

	snap := n.st.snapshot()
	if snap.role != Candidate {
		t.Errorf("expected Candidate, got %s", snap.role)
	}
	if snap.term != 5 {
		t.Errorf("expected term 5, got %d", snap.term)
	}
	if snap.tick != 10 {
		t.Errorf("expected tick 10, got %d", snap.tick)
	}
}

func TestOneVotePerTerm(t *testing.T) {
	n := newTestNode(t, "node1", []string{"node2", "node3"}, newLoopbackTransport())
	n.runCtx = context.Background()

	resp1 := n.HandleRequestVote(&RequestVoteRequest{Term: 1, CandidateID: "node2"})
	if !resp1.Granted {
		t.Fatal("expected first vote granted")
	}

	resp2 := n.HandleRequestVote(&RequestVoteRequest{Term: 1, CandidateID: "node3"})
	if resp2.Granted {
		t.Fatal("expected second vote in same term denied")
	}
}

func TestWinningElectionBecomesLeader(t *testing.T) {
	n := newTestNode(t, "node1", []string{"node2", "node3"}, newLoopbackTransport())
	n.runCtx = context.Background()

	n.st.mu.Lock()
	n.st.role = Candidate
	n.st.term = 1
	n.st.mu.Unlock()

	n.HandleRequestVoteResponse(&RequestVoteResponse{Term: 1, Granted: true})

	snap := n.st.snapshot()
	if snap.role != Leader {
		t.Fatalf("expected Leader after reaching threshold, got %s (votes=%d, threshold=%d)",
			snap.role, snap.voteCount, n.cfg.VoteThreshold())
	}
}

func TestLosingElectionWithHigherTermStepsToFollower(t *testing.T) {
	n := newTestNode(t, "node1", []string{"node2", "node3"}, newLoopbackTransport())
	n.runCtx = context.Background()

	n.st.mu.Lock()
	n.st.role = Candidate
	n.st.term = 2
	n.st.mu.Unlock()

	n.HandleRequestVoteResponse(&RequestVoteResponse{Term: 5, Granted: false})

	snap := n.st.snapshot()
	if snap.role != Follower {
		t.Errorf("expected Follower (Q3 resolution), got %s", snap.role)
	}
	if snap.term != 5 {
		t.Errorf("expected term 5, got %d", snap.term)
	}
}

func TestThreeNodeClusterElectsExactlyOneLeader(t *testing.T) {
	nodes, _ := newTestCluster(t, 3)

	cancel, wg := startCluster(nodes)
	defer func() {
		cancel()
		wg.Wait()
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if countLeaders(nodes) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected exactly one leader, got %d", countLeaders(nodes))
}

func TestAppendEntriesAtSameTermPreservesPersistedVote(t *testing.T) {
	store := &fakeStore{}
	n, err := New(testConfig("node1", []string{"node2", "node3"}), newLoopbackTransport(), store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n.runCtx = context.Background()

	// node1 campaigns at term 1 and votes for itself, as
	// waitForHeartbeat/waitForElection would when promoting.
	n.st.mu.Lock()
	n.st.role = Candidate
	n.st.term = 1
	n.st.votedFor = "node1"
	n.st.mu.Unlock()
	if err := store.SaveTermVote(1, "node1"); err != nil {
		t.Fatalf("SaveTermVote: %v", err)
	}

	// node2 wins the same term's election and contacts node1 as leader.
	resp := n.HandleAppendEntries(&AppendEntriesRequest{Term: 1, LeaderID: "node2"})
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}

	snap := n.st.snapshot()
	if snap.votedFor != "node1" {
		t.Errorf("in-memory votedFor changed: got %q, want node1", snap.votedFor)
	}

	term, votedFor, err := store.LoadTermVote()
	if err != nil {
		t.Fatalf("LoadTermVote: %v", err)
	}
	if term != 1 || votedFor != "node1" {
		t.Errorf("persisted vote corrupted: got term=%d votedFor=%q, want term=1 votedFor=node1", term, votedFor)
	}
}

func TestTermNeverDecreasesAcrossHandlers(t *testing.T) {
	n := newTestNode(t, "node1", []string{"node2", "node3"}, newLoopbackTransport())
	n.runCtx = context.Background()

	n.st.mu.Lock()
	n.st.term = 10
	n.st.mu.Unlock()

	n.HandleRequestVote(&RequestVoteRequest{Term: 3, CandidateID: "node2"})
	if snap := n.st.snapshot(); snap.term < 10 {
		t.Errorf("term decreased: %d", snap.term)
	}

	n.HandleAppendEntries(&AppendEntriesRequest{Term: 3, LeaderID: "node2"})
	if snap := n.st.snapshot(); snap.term < 10 {
		t.Errorf("term decreased: %d", snap.term)
	}
}
