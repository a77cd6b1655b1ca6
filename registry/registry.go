// Package registry tracks the peers a node was configured with and the
// last time each was heard from over the wire. It is purely an
// operational-visibility component: nothing in the raft package reads
// from it, and liveness recorded here never influences role, term, or
// vote state — only what an operator sees (cmd/raftnode logs stale
// peers from it).
package registry

import (
	"fmt"
	"sync"
	"time"
)

// Peer is one entry in a Registry.
type Peer struct {
	ID      string
	Address string
	AddedAt time.Time

	// LastSeen is the last time a reply was observed from this peer
	// over the transport, or the zero value if none has arrived yet.
	LastSeen time.Time
}

// Registry tracks the peers a node knows about by ID, with a reverse
// lookup by address since the transport only ever sees the dial
// address (config.Config.PeerURIs), not the peer's ID.
type Registry struct {
	mu     sync.RWMutex
	peers  map[string]*Peer
	byAddr map[string]string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		peers:  make(map[string]*Peer),
		byAddr: make(map[string]string),
	}
}

// Register adds a peer. Re-registering an existing ID is an error, the
// same as the teacher's node registry.
func (r *Registry) Register(id, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[id]; exists {
		return fmt.Errorf("peer %s already registered", id)
	}

	r.peers[id] = &Peer{ID: id, Address: address, AddedAt: time.Now()}
	r.byAddr[address] = id
	return nil
}

// Unregister removes a peer.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, exists := r.peers[id]
	if !exists {
		return fmt.Errorf("peer %s not found", id)
	}
	delete(r.peers, id)
	delete(r.byAddr, peer.Address)
	return nil
}

// Get returns a single peer's info.
func (r *Registry) Get(id string) (*Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peer, exists := r.peers[id]
	if !exists {
		return nil, fmt.Errorf("peer %s not found", id)
	}
	return peer, nil
}

// All returns every registered peer.
func (r *Registry) All() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	return peers
}

// Count returns the number of registered peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Addresses returns a map of peer ID to address.
func (r *Registry) Addresses() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addrs := make(map[string]string, len(r.peers))
	for id, p := range r.peers {
		addrs[id] = p.Address
	}
	return addrs
}

// Touch records that a reply was just observed from the peer with the
// given ID.
func (r *Registry) Touch(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, exists := r.peers[id]
	if !exists {
		return fmt.Errorf("peer %s not found", id)
	}
	peer.LastSeen = time.Now()
	return nil
}

// TouchByAddress is Touch by dial address rather than ID, for callers
// (the transport client) that only ever see the address they dialed.
// Unknown addresses are silently ignored rather than erroring, since a
// transport may be used against peers this registry was never told
// about.
func (r *Registry) TouchByAddress(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byAddr[address]
	if !ok {
		return
	}
	r.peers[id].LastSeen = time.Now()
}

// Stale returns every registered peer whose last reply (or, if none has
// arrived yet, whose registration) is older than threshold.
func (r *Registry) Stale(threshold time.Duration) []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	var stale []*Peer
	for _, p := range r.peers {
		last := p.LastSeen
		if last.IsZero() {
			last = p.AddedAt
		}
		if now.Sub(last) > threshold {
			stale = append(stale, p)
		}
	}
	return stale
}
