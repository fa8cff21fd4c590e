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
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// runReplicationDriver broadcasts AppendEntries every heartbeat tick
// while leader, and also whenever notifyReplicate is signaled after a
// client append.
func (n *Node) runReplicationDriver() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.HeartbeatTick)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.broadcastIfLeader()
		case <-n.replicateNow:
			n.broadcastIfLeader()
		}
	}
}

func (n *Node) broadcastIfLeader() {
	n.mu.Lock()
	if n.role != Leader {
		n.mu.Unlock()
		return
	}
	term := n.currentTerm
	peers := append([]string(nil), n.peers...)
	isolated := n.isolatedSnapshotLocked()
	n.mu.Unlock()

	g, ctx := errgroup.WithContext(context.Background())
	for _, p := range peers {
		peerID := p
		if isolated[peerID] {
			continue
		}
		g.Go(func() error {
			n.replicateToPeer(ctx, peerID, term)
			return nil
		})
	}
	g.Wait()
}

// replicateToPeer sends one AppendEntries RPC to peerID and applies its
// reply. Input snapshot and RPC dispatch happen outside the mutex; the
// reply is only acted on after re-validating role/term.
func (n *Node) replicateToPeer(ctx context.Context, peerID string, term uint64) {
	n.mu.Lock()
	if n.role != Leader || n.currentTerm != term {
		n.mu.Unlock()
		return
	}
	next := n.nextIndex[peerID]
	if next == 0 {
		next = n.lastLogIndexLocked() + 1
	}
	prevLogIndex := next - 1
	prevLogTerm := n.termAtLocked(prevLogIndex)

	var entries []LogEntry
	if next <= n.lastLogIndexLocked() {
		entries = append(entries, n.entries[next-1:]...)
	}
	leaderCommit := n.commitIndex
	n.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	reply, err := n.transport.SendAppendEntries(reqCtx, peerID, AppendEntriesArgs{
		Term:         term,
		LeaderID:     n.id,
		PrevLogIndex: prevLogIndex,
		PrevLogTerm:  prevLogTerm,
		Entries:      entries,
		LeaderCommit: leaderCommit,
	})
	if err != nil {
		return // transport timeout: treated as "no reply", never a state change
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.role != Leader || n.currentTerm != term {
		return // stale reply for an operation we are no longer performing
	}

	if reply.Term > n.currentTerm {
		n.becomeFollowerLocked(reply.Term, "")
		return
	}

	if reply.Success {
		n.matchIndex[peerID] = prevLogIndex + uint64(len(entries))
		n.nextIndex[peerID] = n.matchIndex[peerID] + 1
		n.advanceCommitIndexLocked()
	} else {
		if n.nextIndex[peerID] > 1 {
			n.nextIndex[peerID]--
		}
	}
}

// advanceCommitIndexLocked enforces the own-term commit rule: a leader
// may only advance commitIndex onto an entry from its own current term.
func (n *Node) advanceCommitIndexLocked() {
	matchIndexes := make([]uint64, 0, len(n.peers)+1)
	matchIndexes = append(matchIndexes, n.lastLogIndexLocked()) // leader's own log
	for _, idx := range n.matchIndex {
		matchIndexes = append(matchIndexes, idx)
	}
	sort.Slice(matchIndexes, func(i, j int) bool { return matchIndexes[i] < matchIndexes[j] })

	need := quorum(len(n.peers) + 1)
	// matchIndexes is sorted ascending; the candidate N is the largest
	// value with at least `need` entries >= it, i.e. position
	// len-need from the start.
	if len(matchIndexes) < need {
		return
	}
	candidate := matchIndexes[len(matchIndexes)-need]
	if candidate > n.commitIndex && n.termAtLocked(candidate) == n.currentTerm {
		n.commitIndex = candidate
		n.notifyApply()
	}
}
