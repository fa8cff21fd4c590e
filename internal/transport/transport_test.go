/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0.
 */

package transport

import (
	"bytes"
	"context"
	"testing"
	"time"

	"raftkv/internal/durablestore"
	"raftkv/internal/raft"
	"raftkv/internal/statemachine"
)

func newRaftNode(t *testing.T, id string, peers []string) *raft.Node {
	t.Helper()
	store, err := durablestore.Open(id, t.TempDir())
	if err != nil {
		t.Fatalf("Open store: %v", err)
	}
	sm := statemachine.New(id, "")
	node, err := raft.NewNode(raft.Config{
		NodeID:        id,
		Peers:         peers,
		ElectionMin:   150 * time.Millisecond,
		ElectionMax:   300 * time.Millisecond,
		HeartbeatTick: 30 * time.Millisecond,
	}, nil, store, sm)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	return node
}

func TestServeAndClientRoundTrip(t *testing.T) {
	node := newRaftNode(t, "node1", nil)
	node.Start()
	defer node.Stop()

	srv, err := NewServer(ServerConfig{Node: node})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go srv.Serve("127.0.0.1:0")
	defer srv.Close()

	addr := waitForAddr(t, srv)

	client, err := NewClient(ClientConfig{Addr: addr})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.NodeID != "node1" {
		t.Errorf("expected node id node1, got %q", status.NodeID)
	}
}

func TestServeRejectsUnauthenticatedFrameWhenSecretSet(t *testing.T) {
	node := newRaftNode(t, "node1", nil)
	node.Start()
	defer node.Stop()

	srv, err := NewServer(ServerConfig{Node: node, ClusterSecret: "top-secret"})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go srv.Serve("127.0.0.1:0")
	defer srv.Close()

	addr := waitForAddr(t, srv)

	// A client without the secret should fail to get a valid response.
	client, err := NewClient(ClientConfig{Addr: addr})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Status(ctx); err == nil {
		t.Error("expected unauthenticated client to fail against an authenticated server")
	}
}

func TestServeAcceptsAuthenticatedFrameWithMatchingSecret(t *testing.T) {
	node := newRaftNode(t, "node1", nil)
	node.Start()
	defer node.Stop()

	srv, err := NewServer(ServerConfig{Node: node, ClusterSecret: "top-secret"})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go srv.Serve("127.0.0.1:0")
	defer srv.Close()

	addr := waitForAddr(t, srv)

	client, err := NewClient(ClientConfig{Addr: addr, ClusterSecret: "top-secret"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Status(ctx); err != nil {
		t.Fatalf("Status with matching secret: %v", err)
	}
}

func TestLoopbackDispatchesToRegisteredNode(t *testing.T) {
	a := newRaftNode(t, "a", []string{"b"})
	b := newRaftNode(t, "b", []string{"a"})

	lb := NewLoopback()
	lb.Register("a", a)
	lb.Register("b", b)

	ctx := context.Background()
	reply, err := lb.SendRequestVote(ctx, "b", raft.RequestVoteArgs{Term: 1, CandidateID: "a"})
	if err != nil {
		t.Fatalf("SendRequestVote: %v", err)
	}
	if !reply.VoteGranted {
		t.Error("expected b to grant a's vote at term 1 with an empty log")
	}
}

func TestLoopbackUnknownPeerErrors(t *testing.T) {
	lb := NewLoopback()
	if _, err := lb.SendRequestVote(context.Background(), "ghost", raft.RequestVoteArgs{}); err == nil {
		t.Error("expected an error dispatching to an unregistered peer")
	}
}

func TestCompressRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("raftkv-compression-test-payload "), 64)

	for _, algo := range []Algorithm{AlgorithmNone, AlgorithmGzip, AlgorithmLZ4, AlgorithmSnappy, AlgorithmZstd} {
		usedAlgo, compressed, err := compress(algo, payload)
		if err != nil {
			t.Fatalf("compress(%v): %v", algo, err)
		}
		out, err := decompress(usedAlgo, compressed)
		if err != nil {
			t.Fatalf("decompress(%v): %v", usedAlgo, err)
		}
		if !bytes.Equal(out, payload) {
			t.Errorf("algo %v: round trip mismatch", algo)
		}
	}
}

func TestCompressSkipsSmallPayloads(t *testing.T) {
	small := []byte("tiny")
	algo, out, err := compress(AlgorithmGzip, small)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if algo != AlgorithmNone {
		t.Errorf("expected small payload to skip compression, got algo %v", algo)
	}
	if !bytes.Equal(out, small) {
		t.Error("expected small payload to pass through unchanged")
	}
}

func TestAuthenticatorRejectsTamperedBody(t *testing.T) {
	a, err := newAuthenticator("cluster-secret")
	if err != nil {
		t.Fatalf("newAuthenticator: %v", err)
	}
	body := []byte(`{"hello":"world"}`)
	tag := a.sign(msgStatus, body)

	if !a.verify(msgStatus, body, tag) {
		t.Fatal("expected genuine tag to verify")
	}
	tampered := append([]byte(nil), body...)
	tampered[0] = '!'
	if a.verify(msgStatus, tampered, tag) {
		t.Error("expected tampered body to fail verification")
	}
}

func waitForAddr(t *testing.T, srv *Server) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := srv.Addr(); addr != nil {
			return addr.String()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server never bound an address")
	return ""
}
