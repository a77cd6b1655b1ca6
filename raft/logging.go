// raft/logging.go
package raft

import (
	"fmt"
	"log"
	"time"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger provides structured logging for the election core
type Logger struct {
	nodeID string
	level  LogLevel
}

// NewLogger creates a new logger for a node
func NewLogger(nodeID string, level LogLevel) *Logger {
	return &Logger{
		nodeID: nodeID,
		level:  level,
	}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level <= DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.level <= INFO {
		l.log("INFO", format, args...)
	}
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level <= WARN {
		l.log("WARN", format, args...)
	}
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.level <= ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *Logger) log(level, format string, args ...interface{}) {
	timestamp := time.Now().Format("15:04:05.000")
	prefix := fmt.Sprintf("[%s] [%s] [%s] ", timestamp, l.nodeID, level)
	log.Printf(prefix+format, args...)
}

// Specialized log functions for election events

func (l *Logger) LogStateChange(oldRole, newRole Role, term uint64) {
	emoji := map[Role]string{
		Follower:  "👤",
		Candidate: "🗳️",
		Leader:    "👑",
	}
	l.Info("%s %s → %s %s (term=%d)",
		emoji[oldRole], oldRole,
		emoji[newRole], newRole, term)
}

func (l *Logger) LogElectionStart(term uint64) {
	l.Info("🗳️  starting election for term %d", term)
}

func (l *Logger) LogElectionWon(term, votes, needed uint64) {
	l.Info("👑 won election for term %d (votes=%d/%d)", term, votes, needed)
}

func (l *Logger) LogVoteGranted(candidateID string, term uint64) {
	l.Info("✅ granted vote to %s for term %d", candidateID, term)
}

func (l *Logger) LogVoteDenied(candidateID string, term uint64, reason string) {
	l.Info("❌ denied vote to %s for term %d: %s", candidateID, term, reason)
}

func (l *Logger) LogHeartbeatSent(term uint64, peerCount int) {
	l.Debug("💓 sent heartbeat to %d peers (term=%d)", peerCount, term)
}

func (l *Logger) LogHeartbeatReceived(leaderID string, term uint64) {
	l.Debug("💓 received heartbeat from %s (term=%d)", leaderID, term)
}

func (l *Logger) LogAppendEntries(leaderID string, term, prevLogIndex uint64, entryCount int) {
	l.Debug("📥 received AppendEntries from %s (term=%d, prevIndex=%d, entries=%d)",
		leaderID, term, prevLogIndex, entryCount)
}

func (l *Logger) LogStepDown(oldTerm, newTerm uint64) {
	l.Info("⬇️  stepping down: term %d → %d", oldTerm, newTerm)
}

func (l *Logger) LogWatchdogSuperseded(kind string, expectedTick uint64) {
	l.Debug("%s watchdog superseded at expected_tick=%d", kind, expectedTick)
}

func (l *Logger) LogLeaderConflict(term uint64) {
	l.Info("⚔️  leader conflict at term %d, demoting to candidate", term)
}
