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

// RequestVote handles an inbound RequestVote RPC. A request from an
// isolated peer is accepted but never acted upon.
func (n *Node) RequestVote(args RequestVoteArgs) RequestVoteReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.isIsolatedLocked(args.CandidateID) {
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
	}

	// Pre-vote never mutates currentTerm/votedFor; it only reports
	// whether this peer would grant a real vote for that hypothetical
	// term.
	if args.PreVote {
		granted := args.Term >= n.currentTerm && n.logUpToDateLocked(args.LastLogIndex, args.LastLogTerm)
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: granted}
	}

	if args.Term > n.currentTerm {
		n.becomeFollowerLocked(args.Term, n.currentLeader)
	} else if args.Term < n.currentTerm {
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
	}

	canVote := n.votedFor == "" || n.votedFor == args.CandidateID
	if canVote && n.logUpToDateLocked(args.LastLogIndex, args.LastLogTerm) {
		n.votedFor = args.CandidateID
		n.persistLocked()
		n.resetElectionDeadlineLocked()
		n.log.Info("granted vote", "term", itoa(n.currentTerm), "candidate", args.CandidateID)
		return RequestVoteReply{Term: n.currentTerm, VoteGranted: true}
	}

	return RequestVoteReply{Term: n.currentTerm, VoteGranted: false}
}

// logUpToDateLocked reports whether a candidate's log is at least as
// up to date as ours: a strictly later last-entry term wins outright;
// on a tied term, the longer log wins.
func (n *Node) logUpToDateLocked(candidateLastIndex, candidateLastTerm uint64) bool {
	ourLastTerm := n.lastLogTermLocked()
	ourLastIndex := n.lastLogIndexLocked()
	if candidateLastTerm != ourLastTerm {
		return candidateLastTerm > ourLastTerm
	}
	return candidateLastIndex >= ourLastIndex
}

// AppendEntries handles an inbound AppendEntries RPC.
func (n *Node) AppendEntries(args AppendEntriesArgs) AppendEntriesReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.isIsolatedLocked(args.LeaderID) {
		return AppendEntriesReply{Term: n.currentTerm, Success: false}
	}

	if args.Term < n.currentTerm {
		return AppendEntriesReply{Term: n.currentTerm, Success: false}
	}

	n.becomeFollowerLocked(args.Term, args.LeaderID)
	n.resetElectionDeadlineLocked()

	if args.PrevLogIndex > 0 {
		if n.lastLogIndexLocked() < args.PrevLogIndex {
			return AppendEntriesReply{Term: n.currentTerm, Success: false}
		}
		if n.termAtLocked(args.PrevLogIndex) != args.PrevLogTerm {
			return AppendEntriesReply{Term: n.currentTerm, Success: false}
		}
	}

	changed := false
	lastNewIndex := args.PrevLogIndex
	for k, e := range args.Entries {
		idx := args.PrevLogIndex + 1 + uint64(k)
		lastNewIndex = idx
		if existing, ok := n.entryAtLocked(idx); ok {
			if existing.Term != e.Term {
				n.truncateLocked(idx)
				n.entries = append(n.entries, LogEntry{Index: idx, Term: e.Term, Command: e.Command})
				changed = true
			}
			// else: already matches, never touch it.
		} else {
			n.entries = append(n.entries, LogEntry{Index: idx, Term: e.Term, Command: e.Command})
			changed = true
		}
	}
	if len(args.Entries) == 0 {
		lastNewIndex = n.lastLogIndexLocked()
	}

	if changed {
		n.persistLocked()
	}

	if args.LeaderCommit > n.commitIndex {
		newCommit := args.LeaderCommit
		if lastNewIndex < newCommit {
			newCommit = lastNewIndex
		}
		if newCommit > n.commitIndex {
			n.commitIndex = newCommit
			n.notifyApply()
		}
	}

	return AppendEntriesReply{Term: n.currentTerm, Success: true}
}

func (n *Node) notifyApply() {
	select {
	case n.applyNow <- struct{}{}:
	default:
	}
}

func (n *Node) notifyReplicate() {
	select {
	case n.replicateNow <- struct{}{}:
	default:
	}
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
