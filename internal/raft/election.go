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
	"time"

	"golang.org/x/sync/errgroup"
)

// runElectionDriver is the Election Driver: it wakes periodically,
// checks whether the deadline has elapsed, and if so starts an election.
// It never sleeps for the whole timeout in one shot so that Stop can
// interrupt it promptly.
func (n *Node) runElectionDriver() {
	defer n.wg.Done()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
		}

		n.mu.Lock()
		expired := n.role != Leader && n.clock.Now().After(n.electionDeadline)
		n.mu.Unlock()

		if expired {
			n.startElection()
		}
	}
}

// startElection transitions to Candidate and conducts one term of
// voting, collecting replies concurrently via errgroup rather than
// polling peers one at a time.
func (n *Node) startElection() {
	n.mu.Lock()
	if n.cfg.EnablePreVote {
		hypotheticalTerm := n.currentTerm + 1
		lastIndex := n.lastLogIndexLocked()
		lastTerm := n.lastLogTermLocked()
		peers := append([]string(nil), n.peers...)
		isolated := n.isolatedSnapshotLocked()
		n.mu.Unlock()

		if !n.collectPreVotes(hypotheticalTerm, lastIndex, lastTerm, peers, isolated) {
			return
		}
		n.mu.Lock()
	}

	n.becomeCandidateLocked()
	term := n.currentTerm
	lastIndex := n.lastLogIndexLocked()
	lastTerm := n.lastLogTermLocked()
	peers := append([]string(nil), n.peers...)
	isolated := n.isolatedSnapshotLocked()
	n.log.Info("starting election", "term", itoa(term))
	n.mu.Unlock()

	votes := 1 // self
	needed := quorum(len(peers) + 1)
	if votes >= needed {
		n.mu.Lock()
		if n.role == Candidate && n.currentTerm == term {
			n.becomeLeaderLocked()
			n.log.Info("became leader (no peers)", "term", itoa(term))
			n.notifyReplicate()
		}
		n.mu.Unlock()
		return
	}

	votesMu := make(chan int, 1)
	votesMu <- votes

	g, ctx := errgroup.WithContext(context.Background())
	for _, p := range peers {
		peerID := p
		if isolated[peerID] {
			continue
		}
		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			defer cancel()
			reply, err := n.transport.SendRequestVote(reqCtx, peerID, RequestVoteArgs{
				Term:         term,
				CandidateID:  n.id,
				LastLogIndex: lastIndex,
				LastLogTerm:  lastTerm,
			})
			if err != nil {
				return nil // treated as "no vote", never an error for the group
			}

			n.mu.Lock()
			defer n.mu.Unlock()

			if reply.Term > n.currentTerm {
				n.becomeFollowerLocked(reply.Term, "")
				return nil
			}
			if !reply.VoteGranted || n.role != Candidate || n.currentTerm != term {
				return nil
			}

			count := <-votesMu
			count++
			votesMu <- count
			if count >= needed && n.role == Candidate && n.currentTerm == term {
				n.becomeLeaderLocked()
				n.log.Info("became leader", "term", itoa(term))
				n.notifyReplicate()
			}
			return nil
		})
	}
	g.Wait()
}

// collectPreVotes runs the pre-vote phase: identical fan-out, but
// replies never mutate currentTerm/votedFor regardless of outcome.
func (n *Node) collectPreVotes(term, lastIndex, lastTerm uint64, peers []string, isolated map[string]bool) bool {
	needed := quorum(len(peers) + 1)
	votes := 1
	if votes >= needed {
		return true
	}

	votesCh := make(chan int, 1)
	votesCh <- votes

	g, ctx := errgroup.WithContext(context.Background())
	for _, p := range peers {
		peerID := p
		if isolated[peerID] {
			continue
		}
		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			defer cancel()
			reply, err := n.transport.SendRequestVote(reqCtx, peerID, RequestVoteArgs{
				Term:         term,
				CandidateID:  n.id,
				LastLogIndex: lastIndex,
				LastLogTerm:  lastTerm,
				PreVote:      true,
			})
			if err != nil || !reply.VoteGranted {
				return nil
			}
			count := <-votesCh
			count++
			votesCh <- count
			return nil
		})
	}
	g.Wait()

	final := <-votesCh
	return final >= needed
}

func (n *Node) isolatedSnapshotLocked() map[string]bool {
	out := make(map[string]bool, len(n.isolated))
	for k, v := range n.isolated {
		out[k] = v
	}
	return out
}

// quorum computes ⌊N/2⌋+1 for a cluster of size N.
func quorum(n int) int {
	return n/2 + 1
}
