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

package transport

import (
	"context"
	"errors"
	"sync"

	"raftkv/internal/raft"
)

// Loopback is an in-memory raft.Transport that dispatches RPCs directly
// to registered *raft.Node handler methods, with no socket, framing, or
// serialization involved. internal/raft's own tests use a package-local
// equivalent to avoid this package's import of internal/raft creating a
// cycle; this one is for transport-level and higher (e.g. cmd)
// integration tests that already sit above both packages.
type Loopback struct {
	mu    sync.RWMutex
	nodes map[string]*raft.Node
}

// NewLoopback builds an empty Loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{nodes: make(map[string]*raft.Node)}
}

// Register adds a node to the loopback cluster under id.
func (l *Loopback) Register(id string, n *raft.Node) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nodes[id] = n
}

// SendRequestVote implements raft.Transport.
func (l *Loopback) SendRequestVote(ctx context.Context, peerID string, args raft.RequestVoteArgs) (raft.RequestVoteReply, error) {
	target, ok := l.lookup(peerID)
	if !ok {
		return raft.RequestVoteReply{}, errors.New("loopback: unknown peer")
	}
	select {
	case <-ctx.Done():
		return raft.RequestVoteReply{}, ctx.Err()
	default:
	}
	return target.RequestVote(args), nil
}

// SendAppendEntries implements raft.Transport.
func (l *Loopback) SendAppendEntries(ctx context.Context, peerID string, args raft.AppendEntriesArgs) (raft.AppendEntriesReply, error) {
	target, ok := l.lookup(peerID)
	if !ok {
		return raft.AppendEntriesReply{}, errors.New("loopback: unknown peer")
	}
	select {
	case <-ctx.Done():
		return raft.AppendEntriesReply{}, ctx.Err()
	default:
	}
	return target.AppendEntries(args), nil
}

func (l *Loopback) lookup(id string) (*raft.Node, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.nodes[id]
	return n, ok
}
