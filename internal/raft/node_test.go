/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0.
 */

package raft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"raftkv/internal/durablestore"
	"raftkv/internal/statemachine"
)

// fakeCluster is an in-memory Transport shared by every node in a test,
// routing RPCs directly to the target Node's handler methods. No
// sockets, no serialization — equivalent in spirit to
// transport.Loopback, inlined here to avoid an import cycle between
// internal/raft and internal/transport.
type fakeCluster struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{nodes: make(map[string]*Node)}
}

func (c *fakeCluster) register(id string, n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[id] = n
}

func (c *fakeCluster) SendRequestVote(ctx context.Context, peerID string, args RequestVoteArgs) (RequestVoteReply, error) {
	c.mu.RLock()
	target, ok := c.nodes[peerID]
	c.mu.RUnlock()
	if !ok {
		return RequestVoteReply{}, errors.New("unknown peer")
	}
	select {
	case <-ctx.Done():
		return RequestVoteReply{}, ctx.Err()
	default:
	}
	return target.RequestVote(args), nil
}

func (c *fakeCluster) SendAppendEntries(ctx context.Context, peerID string, args AppendEntriesArgs) (AppendEntriesReply, error) {
	c.mu.RLock()
	target, ok := c.nodes[peerID]
	c.mu.RUnlock()
	if !ok {
		return AppendEntriesReply{}, errors.New("unknown peer")
	}
	select {
	case <-ctx.Done():
		return AppendEntriesReply{}, ctx.Err()
	default:
	}
	return target.AppendEntries(args), nil
}

func newTestCluster(t *testing.T, n int) ([]*Node, *fakeCluster) {
	t.Helper()
	cluster := newFakeCluster()
	nodes := make([]*Node, n)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("node%d", i+1)
	}

	for i := 0; i < n; i++ {
		peers := make([]string, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				peers = append(peers, ids[j])
			}
		}
		store, err := durablestore.Open(ids[i], t.TempDir())
		if err != nil {
			t.Fatalf("Open store: %v", err)
		}
		sm := statemachine.New(ids[i], "")
		node, err := NewNode(Config{
			NodeID:        ids[i],
			Peers:         peers,
			ElectionMin:   150 * time.Millisecond,
			ElectionMax:   300 * time.Millisecond,
			HeartbeatTick: 30 * time.Millisecond,
		}, cluster, store, sm)
		if err != nil {
			t.Fatalf("NewNode: %v", err)
		}
		nodes[i] = node
		cluster.register(ids[i], node)
	}
	return nodes, cluster
}

func startAll(nodes []*Node) {
	for _, n := range nodes {
		n.Start()
	}
}

func stopAll(nodes []*Node) {
	for _, n := range nodes {
		n.Stop()
	}
}

func waitForLeader(t *testing.T, nodes []*Node, timeout time.Duration) *Node {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, n := range nodes {
			if n.Status().Role == Leader {
				return n
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no leader elected within timeout")
	return nil
}

func TestElectsExactlyOneLeader(t *testing.T) {
	nodes, _ := newTestCluster(t, 5)
	startAll(nodes)
	defer stopAll(nodes)

	leader := waitForLeader(t, nodes, 3*time.Second)
	time.Sleep(100 * time.Millisecond)

	leaderCount := 0
	for _, n := range nodes {
		st := n.Status()
		if st.Role == Leader {
			leaderCount++
		}
	}
	if leaderCount != 1 {
		t.Errorf("expected exactly 1 leader, got %d", leaderCount)
	}
	if leader.Status().Term < 1 {
		t.Errorf("expected term >= 1, got %d", leader.Status().Term)
	}
}

func TestReplicatesCommandsToAllPeers(t *testing.T) {
	nodes, _ := newTestCluster(t, 5)
	startAll(nodes)
	defer stopAll(nodes)

	leader := waitForLeader(t, nodes, 3*time.Second)

	for _, cmd := range []string{"SET x 1", "SET y 2", "SET z 3"} {
		result := leader.SubmitCommand(cmd)
		if !result.Success {
			t.Fatalf("SubmitCommand(%q) failed: %s", cmd, result.Message)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		allCaughtUp := true
		for _, n := range nodes {
			if n.sm.Len() != 3 {
				allCaughtUp = false
			}
		}
		if allCaughtUp {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	for _, n := range nodes {
		snap := n.sm.Snapshot()
		if snap["x"] != "1" || snap["y"] != "2" || snap["z"] != "3" {
			t.Errorf("node %s did not converge: %+v", n.id, snap)
		}
	}
}

func TestNotLeaderRejection(t *testing.T) {
	nodes, _ := newTestCluster(t, 5)
	startAll(nodes)
	defer stopAll(nodes)

	leader := waitForLeader(t, nodes, 3*time.Second)
	for _, n := range nodes {
		if n == leader {
			continue
		}
		result := n.SubmitCommand("SET a 1")
		if result.Success {
			t.Errorf("expected follower %s to reject SubmitCommand", n.id)
		}
		if result.Message != "not leader" {
			t.Errorf("expected 'not leader' message, got %q", result.Message)
		}
		break
	}
}

func TestIsolationPreventsMinorityCommit(t *testing.T) {
	nodes, _ := newTestCluster(t, 5)
	startAll(nodes)
	defer stopAll(nodes)

	leader := waitForLeader(t, nodes, 3*time.Second)

	// Isolate two followers from the rest; majority keeps functioning.
	isolatedIDs := make([]string, 0, 2)
	for _, n := range nodes {
		if n != leader && len(isolatedIDs) < 2 {
			isolatedIDs = append(isolatedIDs, n.id)
		}
	}
	allIDs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		allIDs = append(allIDs, n.id)
	}

	for _, n := range nodes {
		var toIsolate []string
		isMinority := false
		for _, id := range isolatedIDs {
			if id == n.id {
				isMinority = true
			}
		}
		if isMinority {
			for _, id := range allIDs {
				if id != n.id {
					toIsolate = append(toIsolate, id)
				}
			}
		} else {
			toIsolate = isolatedIDs
		}
		n.Isolate(toIsolate)
	}

	result := leader.SubmitCommand("SET p majority")
	if !result.Success {
		t.Fatalf("majority submit failed: %s", result.Message)
	}

	for _, n := range nodes {
		if n.id == isolatedIDs[0] {
			if res := n.SubmitCommand("SET p minority"); res.Success {
				t.Errorf("minority node %s committed SET p minority", n.id)
			}
		}
	}
	for _, n := range nodes {
		if n.sm.Snapshot()["p"] == "minority" {
			t.Errorf("node %s applied p=minority", n.id)
		}
	}

	for _, n := range nodes {
		n.Isolate(nil)
	}
}

func TestLogMatchingAcrossPeers(t *testing.T) {
	nodes, _ := newTestCluster(t, 3)
	startAll(nodes)
	defer stopAll(nodes)

	leader := waitForLeader(t, nodes, 3*time.Second)
	leader.SubmitCommand("SET k v")

	time.Sleep(300 * time.Millisecond)

	var reference []LogEntry
	for i, n := range nodes {
		n.mu.Lock()
		entries := append([]LogEntry(nil), n.entries...)
		n.mu.Unlock()
		if i == 0 {
			reference = entries
			continue
		}
		if len(entries) != len(reference) {
			continue // still catching up, acceptable for this coarse check
		}
		for j := range entries {
			if entries[j].Term != reference[j].Term || entries[j].Command != reference[j].Command {
				t.Errorf("log mismatch at index %d between node0 and node%d", j, i)
			}
		}
	}
}
