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

/*
Package raft is the consensus core: Raft State, the Election, Replication,
and Apply drivers, and the RequestVote/AppendEntries handler algorithms.
It consumes transport through the Transport interface below and never
dials a socket itself — that is the transport package's job.
*/
package raft

import (
	"context"
	"time"
)

// Role is a peer's current Raft role.
type Role int32

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// LogEntry is a single replicated log entry. Indices are dense and
// 1-based; index 0 is reserved for an internal zero-term sentinel that
// is never externally observable (mirrors an empty log's "last index 0,
// last term 0").
type LogEntry struct {
	Index   uint64
	Term    uint64
	Command string
}

// RequestVoteArgs is the RequestVote RPC payload.
type RequestVoteArgs struct {
	Term         uint64
	CandidateID  string
	LastLogIndex uint64
	LastLogTerm  uint64
	PreVote      bool
}

// RequestVoteReply is the RequestVote RPC reply.
type RequestVoteReply struct {
	Term        uint64
	VoteGranted bool
}

// AppendEntriesArgs is the AppendEntries RPC payload.
type AppendEntriesArgs struct {
	Term         uint64
	LeaderID     string
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []LogEntry
	LeaderCommit uint64
}

// AppendEntriesReply is the AppendEntries RPC reply.
type AppendEntriesReply struct {
	Term    uint64
	Success bool
}

// SubmitResult is SubmitCommand's outcome.
type SubmitResult struct {
	Success  bool
	Message  string
	LeaderID string
}

// Status is the read-only introspection surface used by raftctl.
type Status struct {
	NodeID      string
	Role        Role
	Term        uint64
	LeaderID    string
	CommitIndex uint64
	LastApplied uint64
	LogLength   int
}

// Transport is the typed request/response interface the core consumes.
// Implementations (see internal/transport) own the actual wire protocol;
// the core treats every error returned here as "no reply", never as a
// state transition signal.
type Transport interface {
	SendRequestVote(ctx context.Context, peerID string, args RequestVoteArgs) (RequestVoteReply, error)
	SendAppendEntries(ctx context.Context, peerID string, args AppendEntriesArgs) (AppendEntriesReply, error)
}

// Clock abstracts wall-clock reads so tests can run with real time
// without needing to fake a scheduler; kept minimal since the timing
// requirements here are about relative ordering, not precision.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
