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
	"time"

	"raftkv/internal/raftkverrors"
)

// runApplyDriver is the single-consumer Apply Driver: while lastApplied
// < commitIndex, apply entries strictly in order and signal any client
// waiter registered on that index.
func (n *Node) runApplyDriver() {
	defer n.wg.Done()
	for {
		select {
		case <-n.stopCh:
			return
		case <-n.applyNow:
			n.drainApply()
		case <-time.After(20 * time.Millisecond):
			n.drainApply()
		}
	}
}

func (n *Node) drainApply() {
	for {
		n.mu.Lock()
		if n.lastApplied >= n.commitIndex {
			n.mu.Unlock()
			return
		}
		index := n.lastApplied + 1
		entry, ok := n.entryAtLocked(index)
		n.mu.Unlock()
		if !ok {
			return
		}

		result := n.sm.Apply(entry.Command)

		n.mu.Lock()
		n.lastApplied = index
		n.mu.Unlock()

		n.signalWaiter(index, result)
	}
}

func (n *Node) registerWaiter(index uint64) chan string {
	ch := make(chan string, 1)
	n.waitersMu.Lock()
	n.waiters[index] = ch
	n.waitersMu.Unlock()
	return ch
}

func (n *Node) unregisterWaiter(index uint64) {
	n.waitersMu.Lock()
	delete(n.waiters, index)
	n.waitersMu.Unlock()
}

func (n *Node) signalWaiter(index uint64, result string) {
	n.waitersMu.Lock()
	ch, ok := n.waiters[index]
	if ok {
		delete(n.waiters, index)
	}
	n.waitersMu.Unlock()
	if ok {
		ch <- result
	}
}

// clientWaitTimeout is the bounded server-side wait for SubmitCommand.
const clientWaitTimeout = 5 * time.Second

// SubmitCommand appends command to the log if this node is leader, then
// blocks until it commits and applies, or the server-side wait times
// out, or this node stops being leader for that entry's term.
func (n *Node) SubmitCommand(command string) SubmitResult {
	n.mu.Lock()
	if n.role != Leader {
		hint := n.currentLeader
		n.mu.Unlock()
		return SubmitResult{Success: false, Message: "not leader", LeaderID: orUnknown(hint)}
	}

	term := n.currentTerm
	index := n.lastLogIndexLocked() + 1
	n.entries = append(n.entries, LogEntry{Index: index, Term: term, Command: command})
	n.persistLocked()
	waitCh := n.registerWaiter(index)
	n.mu.Unlock()

	n.notifyReplicate()

	timer := time.NewTimer(clientWaitTimeout)
	defer timer.Stop()
	roleCheck := time.NewTicker(10 * time.Millisecond)
	defer roleCheck.Stop()

	for {
		select {
		case result := <-waitCh:
			return SubmitResult{Success: true, Message: result, LeaderID: n.id}
		case <-timer.C:
			n.unregisterWaiter(index)
			return SubmitResult{Success: false, Message: raftkverrors.ErrCommitTimeout().Error(), LeaderID: n.id}
		case <-roleCheck.C:
			n.mu.Lock()
			stillLeaderForTerm := n.role == Leader && n.currentTerm == term
			hint := n.currentLeader
			n.mu.Unlock()
			if !stillLeaderForTerm {
				n.unregisterWaiter(index)
				return SubmitResult{Success: false, Message: "no longer leader", LeaderID: orUnknown(hint)}
			}
		case <-n.stopCh:
			n.unregisterWaiter(index)
			return SubmitResult{Success: false, Message: "node stopping", LeaderID: n.id}
		}
	}
}

func orUnknown(id string) string {
	if id == "" {
		return "unknown"
	}
	return id
}
