// Command raftnode bootstraps a single leader-election node: it parses
// flags into a config.Config, wires up the gRPC transport and the
// optional on-disk term/vote store, and runs the node until it
// receives SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"barge/config"
	"barge/persistence"
	"barge/raft"
	"barge/registry"
	rgrpc "barge/transport/grpc"
)

func main() {
	var (
		nodeID   = flag.String("id", "", "this node's ID, sent as the candidate/leader ID in requests to peers")
		listen   = flag.String("listen", ":50051", "address to listen for peer RPCs on")
		peersArg = flag.String("peers", "", "comma-separated id=address pairs for the rest of the cluster")
		dataDir  = flag.String("data", "", "directory for the durable term/vote record (disabled if empty)")

		heartbeatPeriod   = flag.Duration("heartbeat-period", 50*time.Millisecond, "interval between heartbeats a leader sends")
		heartbeatIntMin   = flag.Duration("heartbeat-interval-min", 10*time.Millisecond, "minimum spacing between a leader's successive heartbeat sends")
		heartbeatMin      = flag.Duration("heartbeat-timeout-min", 150*time.Millisecond, "lower bound of the randomized follower heartbeat watchdog")
		heartbeatMax      = flag.Duration("heartbeat-timeout-max", 300*time.Millisecond, "upper bound of the randomized follower heartbeat watchdog")
		electionMin       = flag.Duration("election-timeout-min", 150*time.Millisecond, "lower bound of the randomized candidate election watchdog")
		electionMax       = flag.Duration("election-timeout-max", 300*time.Millisecond, "upper bound of the randomized candidate election watchdog")
	)
	flag.Parse()

	if *nodeID == "" {
		log.Fatal("-id is required")
	}

	reg := registry.New()
	peerURIs, err := parsePeers(*peersArg, reg)
	if err != nil {
		log.Fatalf("failed to parse -peers: %v", err)
	}

	cfg := &config.Config{
		NodeID:                   *nodeID,
		SendHeartbeatPeriod:      *heartbeatPeriod,
		SendHeartbeatIntervalMin: *heartbeatIntMin,
		HeartbeatTimeoutMin:      *heartbeatMin,
		HeartbeatTimeoutMax:      *heartbeatMax,
		ElectionTimeoutMin:       *electionMin,
		ElectionTimeoutMax:       *electionMax,
		PeerURIs:                 peerURIs,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	var store raft.TermVoteStore
	if *dataDir != "" {
		fileStore, err := persistence.NewFileTermStore(*dataDir)
		if err != nil {
			log.Fatalf("failed to open term store: %v", err)
		}
		defer fileStore.Close()
		store = fileStore
	}

	client := rgrpc.NewClient(reg)
	defer client.Close()

	node, err := raft.New(cfg, client, store)
	if err != nil {
		log.Fatalf("failed to construct node: %v", err)
	}

	server := rgrpc.NewServer(node)
	go func() {
		if err := server.Start(*listen); err != nil {
			log.Fatalf("transport server stopped: %v", err)
		}
	}()
	defer server.Stop()

	log.Printf("node %s listening on %s, peers=%v", *nodeID, *listen, peerURIs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go logStalePeers(ctx, reg, *heartbeatMax)

	if err := node.Run(ctx); err != nil {
		log.Fatalf("node run: %v", err)
	}
	log.Printf("node %s shut down", *nodeID)
}

// logStalePeers periodically warns about peers the transport hasn't
// heard a reply from in over threshold, purely for operator visibility;
// it has no bearing on the election state machine.
func logStalePeers(ctx context.Context, reg *registry.Registry, threshold time.Duration) {
	ticker := time.NewTicker(threshold)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range reg.Stale(threshold) {
				log.Printf("peer %s (%s) has not replied in over %s", p.ID, p.Address, threshold)
			}
		}
	}
}

// parsePeers parses a comma-separated list of "id=address" pairs,
// registering each in reg and returning the address list config.Config
// expects as PeerURIs.
func parsePeers(arg string, reg *registry.Registry) ([]string, error) {
	if arg == "" {
		return nil, nil
	}

	var uris []string
	for _, pair := range strings.Split(arg, ",") {
		idAddr := strings.SplitN(pair, "=", 2)
		if len(idAddr) != 2 || idAddr[0] == "" || idAddr[1] == "" {
			return nil, fmt.Errorf("malformed peer entry %q, want id=address", pair)
		}
		id, addr := idAddr[0], idAddr[1]
		if err := reg.Register(id, addr); err != nil {
			return nil, err
		}
		uris = append(uris, addr)
	}
	return uris, nil
}
