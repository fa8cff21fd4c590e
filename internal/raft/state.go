/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package raft

import (
	"math/rand"
	"os"
	"sync"
	"time"

	"raftkv/internal/durablestore"
	"raftkv/internal/logging"
	"raftkv/internal/statemachine"
)

// Config carries the Election/Replication Driver timing and the
// optional domain-stack toggles that affect the core directly.
type Config struct {
	NodeID        string
	Peers         []string // peer ids, excluding self
	ElectionMin   time.Duration
	ElectionMax   time.Duration
	HeartbeatTick time.Duration
	EnablePreVote bool
}

// Node holds every persistent and volatile field of one Raft state
// machine, guarded by a single mutex. All decision logic runs under mu;
// RPC dispatch and client waits run outside it (see election.go,
// replication.go, apply.go). Disk writes do not: persistLocked writes
// the state file while mu is held.
type Node struct {
	mu sync.Mutex

	id    string
	peers []string
	cfg   Config

	transport Transport
	store     *durablestore.Store
	sm        *statemachine.KVStore
	log       *logging.Logger
	rng       *rand.Rand
	clock     Clock

	// Persistent state (mirrors durablestore.PersistentState).
	currentTerm uint64
	votedFor    string
	entries     []LogEntry // entries[i] has Index == i+1

	// Volatile state, all peers.
	role             Role
	currentLeader    string
	commitIndex      uint64
	lastApplied      uint64
	electionDeadline time.Time

	// Volatile state, leader only.
	nextIndex  map[string]uint64
	matchIndex map[string]uint64

	// Test-only fault injection.
	isolated map[string]bool

	// Signaling.
	replicateNow chan struct{}
	applyNow     chan struct{}
	stopCh       chan struct{}
	wg           sync.WaitGroup

	// Client-submission waiters, keyed by log index.
	waitersMu sync.Mutex
	waiters   map[uint64]chan string

	// FatalHandler is invoked when a durable write fails; the default
	// logs and exits the process, since a node that can't prove what it
	// persisted can't safely continue participating in the cluster.
	FatalHandler func(error)
}

// NewNode constructs a Node, loading any existing persisted state via
// store.Load. Volatile fields always start fresh: Follower role,
// commitIndex=0, lastApplied=0.
func NewNode(cfg Config, transport Transport, store *durablestore.Store, sm *statemachine.KVStore) (*Node, error) {
	persisted, err := store.Load()
	if err != nil {
		return nil, err
	}

	n := &Node{
		id:           cfg.NodeID,
		peers:        cfg.Peers,
		cfg:          cfg,
		transport:    transport,
		store:        store,
		sm:           sm,
		log:          logging.NewLogger("raft").With("node", cfg.NodeID),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(hashString(cfg.NodeID)))),
		clock:        realClock{},
		currentTerm:  persisted.CurrentTerm,
		votedFor:     persisted.VotedFor,
		entries:      fromPersistedEntries(persisted.Log),
		role:         Follower,
		nextIndex:    make(map[string]uint64),
		matchIndex:   make(map[string]uint64),
		isolated:     make(map[string]bool),
		replicateNow: make(chan struct{}, 1),
		applyNow:     make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		waiters:      make(map[uint64]chan string),
	}
	n.FatalHandler = n.defaultFatalHandler
	n.resetElectionDeadlineLocked()
	return n, nil
}

func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func fromPersistedEntries(in []durablestore.LogEntry) []LogEntry {
	out := make([]LogEntry, len(in))
	for i, e := range in {
		out[i] = LogEntry{Index: e.Index, Term: e.Term, Command: e.Command}
	}
	return out
}

func toPersistedEntries(in []LogEntry) []durablestore.LogEntry {
	out := make([]durablestore.LogEntry, len(in))
	for i, e := range in {
		out[i] = durablestore.LogEntry{Index: e.Index, Term: e.Term, Command: e.Command}
	}
	return out
}

func (n *Node) defaultFatalHandler(err error) {
	n.log.Error("persistence failure, aborting", "error", err.Error())
	os.Exit(1)
}

// persistLocked durably writes currentTerm/votedFor/log. Must be called
// with mu held; it releases nothing itself. Disk I/O happens while
// holding the lock: the write targets a small whole-state file, so the
// added latency is bounded and simplicity wins over overlapping it with
// other state transitions.
func (n *Node) persistLocked() {
	st := durablestore.PersistentState{
		CurrentTerm: n.currentTerm,
		VotedFor:    n.votedFor,
		Log:         toPersistedEntries(n.entries),
	}
	if err := n.store.Save(st); err != nil {
		n.FatalHandler(err)
	}
}

// lastLogIndexLocked returns the index of the last log entry, 0 if empty.
func (n *Node) lastLogIndexLocked() uint64 {
	if len(n.entries) == 0 {
		return 0
	}
	return n.entries[len(n.entries)-1].Index
}

// lastLogTermLocked returns the term of the last log entry, 0 if empty.
func (n *Node) lastLogTermLocked() uint64 {
	if len(n.entries) == 0 {
		return 0
	}
	return n.entries[len(n.entries)-1].Term
}

// entryAtLocked returns the entry at the given 1-based index, or the
// zero value and false if out of range. index 0 is the implicit
// zero-term sentinel and is never present in n.entries.
func (n *Node) entryAtLocked(index uint64) (LogEntry, bool) {
	if index == 0 || index > uint64(len(n.entries)) {
		return LogEntry{}, false
	}
	return n.entries[index-1], true
}

// termAtLocked returns the term of the entry at index, 0 for index 0.
func (n *Node) termAtLocked(index uint64) uint64 {
	if index == 0 {
		return 0
	}
	if e, ok := n.entryAtLocked(index); ok {
		return e.Term
	}
	return 0
}

// truncateLocked drops all entries from index (1-based) onward.
func (n *Node) truncateLocked(fromIndex uint64) {
	if fromIndex == 0 {
		n.entries = n.entries[:0]
		return
	}
	if fromIndex-1 < uint64(len(n.entries)) {
		n.entries = n.entries[:fromIndex-1]
	}
}

// resetElectionDeadlineLocked draws a fresh randomized deadline from
// [electionMin, electionMax]. Callers must hold mu and must only call
// this on a genuine sign of leader liveness: an accepted AppendEntries
// from the current leader, a granted vote, or becoming candidate.
// becomeFollower itself must NOT call this unconditionally — stepping
// down on a stale RPC must not also reset the timer, or an isolated
// leader's followers would never time out and elect a replacement.
func (n *Node) resetElectionDeadlineLocked() {
	span := int64(n.cfg.ElectionMax - n.cfg.ElectionMin)
	var jitter time.Duration
	if span > 0 {
		jitter = time.Duration(n.rng.Int63n(span))
	}
	n.electionDeadline = n.clock.Now().Add(n.cfg.ElectionMin + jitter)
}

// isIsolatedLocked reports whether peerID is currently cut off.
func (n *Node) isIsolatedLocked(peerID string) bool {
	return n.isolated[peerID]
}

// becomeFollowerLocked transitions to Follower. It adopts term if it is
// greater than currentTerm (clearing votedFor) and persists in that
// case; it never resets the election deadline on its own — callers that
// are allowed to reset it do so explicitly after calling this.
func (n *Node) becomeFollowerLocked(term uint64, leaderID string) {
	adoptingHigherTerm := term > n.currentTerm
	n.role = Follower
	n.currentLeader = leaderID
	if adoptingHigherTerm {
		n.currentTerm = term
		n.votedFor = ""
		n.persistLocked()
	}
	n.nextIndex = make(map[string]uint64)
	n.matchIndex = make(map[string]uint64)
}

// becomeCandidateLocked transitions to Candidate, bumps currentTerm,
// votes for self, and persists.
func (n *Node) becomeCandidateLocked() {
	n.role = Candidate
	n.currentTerm++
	n.votedFor = n.id
	n.currentLeader = ""
	n.persistLocked()
	n.resetElectionDeadlineLocked()
}

// becomeLeaderLocked transitions to Leader, reinitializing leader
// volatile state.
func (n *Node) becomeLeaderLocked() {
	n.role = Leader
	n.currentLeader = n.id
	next := n.lastLogIndexLocked() + 1
	n.nextIndex = make(map[string]uint64, len(n.peers))
	n.matchIndex = make(map[string]uint64, len(n.peers))
	for _, p := range n.peers {
		n.nextIndex[p] = next
		n.matchIndex[p] = 0
	}
}

// snapshotStatusLocked builds a Status from current state.
func (n *Node) snapshotStatusLocked() Status {
	return Status{
		NodeID:      n.id,
		Role:        n.role,
		Term:        n.currentTerm,
		LeaderID:    n.currentLeader,
		CommitIndex: n.commitIndex,
		LastApplied: n.lastApplied,
		LogLength:   len(n.entries),
	}
}

// Status returns a read-only snapshot of the node's state, for
// introspection tools like raftctl.
func (n *Node) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshotStatusLocked()
}

// Isolate sets this peer's isolation set, a test-only fault-injection
// hook: RPCs to/from a listed peer ID are silently dropped. An empty
// list clears isolation.
func (n *Node) Isolate(peerIDs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.isolated = make(map[string]bool, len(peerIDs))
	for _, p := range peerIDs {
		n.isolated[p] = true
	}
	n.log.Info("isolation set updated", "peers", joinIDs(peerIDs))
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}
