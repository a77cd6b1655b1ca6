// Package config holds the tunables for a raft election core and the
// randomized timer draws derived from them.
package config

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Config is immutable after construction and freely shareable across the
// goroutines that make up a node.
type Config struct {
	// NodeID identifies this node to peers in RequestVote/AppendEntries.
	NodeID string

	// SendHeartbeatPeriod is the leader's heartbeat emission period.
	SendHeartbeatPeriod time.Duration

	// SendHeartbeatIntervalMin is the minimum spacing between back-to-back
	// heartbeats.
	SendHeartbeatIntervalMin time.Duration

	// HeartbeatTimeoutMin/Max bound the follower's heartbeat watchdog.
	HeartbeatTimeoutMin time.Duration
	HeartbeatTimeoutMax time.Duration

	// ElectionTimeoutMin/Max bound the candidate's election round.
	ElectionTimeoutMin time.Duration
	ElectionTimeoutMax time.Duration

	// PeerURIs is the ordered sequence of peer addresses. Its length must
	// be even so that, including self, the cluster size is odd.
	PeerURIs []string
}

// ConfigError is a composite of one or more validation failures, each
// reported as its own distinct message.
type ConfigError struct {
	err error
}

func (e *ConfigError) Error() string {
	return e.err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.err
}

// Validate checks every constructor-time invariant and returns all
// violations joined into a single ConfigError, or nil if the config is
// sound.
func (c *Config) Validate() error {
	var errs []error

	if c.SendHeartbeatPeriod <= 0 {
		errs = append(errs, errors.New("send_heartbeat_period cannot be 0"))
	}
	if c.SendHeartbeatIntervalMin <= 0 {
		errs = append(errs, errors.New("send_heartbeat_interval_min cannot be 0"))
	}
	if c.HeartbeatTimeoutMin <= 0 {
		errs = append(errs, errors.New("heartbeat_timeout_min cannot be 0"))
	}
	if c.HeartbeatTimeoutMax <= 0 {
		errs = append(errs, errors.New("heartbeat_timeout_max cannot be 0"))
	}
	if c.ElectionTimeoutMin <= 0 {
		errs = append(errs, errors.New("election_timeout_min cannot be 0"))
	}
	if c.ElectionTimeoutMax <= 0 {
		errs = append(errs, errors.New("election_timeout_max cannot be 0"))
	}

	if c.SendHeartbeatPeriod > 0 && c.SendHeartbeatIntervalMin > 0 &&
		c.SendHeartbeatPeriod <= c.SendHeartbeatIntervalMin {
		errs = append(errs, fmt.Errorf(
			"expect send_heartbeat_period (%s) > send_heartbeat_interval_min (%s)",
			c.SendHeartbeatPeriod, c.SendHeartbeatIntervalMin))
	}

	if c.HeartbeatTimeoutMin > 0 && c.SendHeartbeatPeriod > 0 &&
		c.HeartbeatTimeoutMin <= c.SendHeartbeatPeriod {
		errs = append(errs, fmt.Errorf(
			"expect heartbeat_timeout_min (%s) > send_heartbeat_period (%s)",
			c.HeartbeatTimeoutMin, c.SendHeartbeatPeriod))
	}

	if c.HeartbeatTimeoutMax > 0 && c.HeartbeatTimeoutMin > 0 &&
		c.HeartbeatTimeoutMax <= c.HeartbeatTimeoutMin {
		errs = append(errs, fmt.Errorf(
			"expect heartbeat_timeout_max (%s) > heartbeat_timeout_min (%s)",
			c.HeartbeatTimeoutMax, c.HeartbeatTimeoutMin))
	}

	if c.ElectionTimeoutMax > 0 && c.ElectionTimeoutMin > 0 &&
		c.ElectionTimeoutMax <= c.ElectionTimeoutMin {
		errs = append(errs, fmt.Errorf(
			"expect election_timeout_max (%s) > election_timeout_min (%s)",
			c.ElectionTimeoutMax, c.ElectionTimeoutMin))
	}

	if len(c.PeerURIs)%2 != 0 {
		errs = append(errs, fmt.Errorf(
			"expect even number of peers (= %d)", len(c.PeerURIs)))
	}

	if len(errs) == 0 {
		return nil
	}
	return &ConfigError{err: errors.Join(errs...)}
}

// VoteThreshold is the number of peer grants (exclusive of the implicit
// self-vote) required to win an election.
func (c *Config) VoteThreshold() uint64 {
	return uint64(len(c.PeerURIs)) / 2
}

// PickHeartbeatTimeout draws a duration uniformly from
// [HeartbeatTimeoutMin, HeartbeatTimeoutMax] at microsecond resolution.
func (c *Config) PickHeartbeatTimeout() time.Duration {
	return pickDuration(c.HeartbeatTimeoutMin, c.HeartbeatTimeoutMax)
}

// PickElectionTimeout draws a duration uniformly from
// [ElectionTimeoutMin, ElectionTimeoutMax] at microsecond resolution.
func (c *Config) PickElectionTimeout() time.Duration {
	return pickDuration(c.ElectionTimeoutMin, c.ElectionTimeoutMax)
}

// pickDuration draws uniformly from the closed interval [lo, hi] in
// microsecond resolution, reading each draw directly from crypto/rand,
// so concurrent timer draws across goroutines never share PRNG state.
func pickDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}

	loUs := lo.Microseconds()
	hiUs := hi.Microseconds()
	span := uint64(hiUs-loUs) + 1

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Never observed in practice (crypto/rand.Read only fails if the
		// OS source is unavailable); fall back to the lower bound rather
		// than panicking a timer goroutine.
		return lo
	}
	n := binary.BigEndian.Uint64(buf[:]) % span

	return time.Duration(loUs+int64(n)) * time.Microsecond
}
