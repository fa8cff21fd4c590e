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
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"raftkv/internal/logging"
	"raftkv/internal/raft"
)

var log = logging.NewLogger("transport")

// Peers is a cluster's peer directory: node id to dial address. It
// implements raft.Transport by opening short-lived TCP connections to
// peers, applying frame authentication and AppendEntries compression
// above the size threshold.
type Peers struct {
	mu   sync.RWMutex
	addr map[string]string

	auth       *authenticator
	compressAs Algorithm
	tlsConfig  *tls.Config

	dialTimeout time.Duration
}

// PeersConfig configures a Peers directory.
type PeersConfig struct {
	Addresses     map[string]string
	ClusterSecret string // empty disables frame authentication
	Compression   Algorithm
	TLSConfig     *tls.Config // nil disables TLS
	DialTimeout   time.Duration
}

// NewPeers builds a peer directory from a static address map.
func NewPeers(cfg PeersConfig) (*Peers, error) {
	p := &Peers{
		addr:        make(map[string]string, len(cfg.Addresses)),
		compressAs:  cfg.Compression,
		tlsConfig:   cfg.TLSConfig,
		dialTimeout: cfg.DialTimeout,
	}
	for id, a := range cfg.Addresses {
		p.addr[id] = a
	}
	if p.dialTimeout == 0 {
		p.dialTimeout = 2 * time.Second
	}
	if cfg.ClusterSecret != "" {
		a, err := newAuthenticator(cfg.ClusterSecret)
		if err != nil {
			return nil, err
		}
		p.auth = a
	}
	return p, nil
}

// SetAddr adds or updates a peer's dial address.
func (p *Peers) SetAddr(id, addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addr[id] = addr
}

func (p *Peers) dial(ctx context.Context, peerID string) (net.Conn, error) {
	p.mu.RLock()
	addr, ok := p.addr[peerID]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no known address for peer %q", peerID)
	}

	dialer := net.Dialer{Timeout: p.dialTimeout}
	if p.tlsConfig != nil {
		return tls.DialWithDialer(&dialer, "tcp", addr, p.tlsConfig)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

func (p *Peers) roundTrip(ctx context.Context, peerID string, reqType msgType, req any, respType msgType, resp any) error {
	conn, err := p.dial(ctx, peerID)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := p.writeRequest(conn, reqType, req); err != nil {
		return err
	}
	gotType, err := p.readResponse(conn, resp)
	if err != nil {
		return err
	}
	if gotType != respType {
		return fmt.Errorf("unexpected response type %d (wanted %d)", gotType, respType)
	}
	return nil
}

func (p *Peers) writeRequest(conn net.Conn, t msgType, payload any) error {
	if p.auth != nil {
		return writeAuthenticatedFrame(conn, p.auth, t, payload)
	}
	return writeFrame(conn, t, payload)
}

func (p *Peers) readResponse(conn net.Conn, out any) (msgType, error) {
	if p.auth != nil {
		return readAuthenticatedFrame(conn, p.auth, out)
	}
	return readFrame(conn, out)
}

// SendRequestVote implements raft.Transport.
func (p *Peers) SendRequestVote(ctx context.Context, peerID string, args raft.RequestVoteArgs) (raft.RequestVoteReply, error) {
	var reply raft.RequestVoteReply
	err := p.roundTrip(ctx, peerID, msgRequestVote, args, msgRequestVoteResp, &reply)
	return reply, err
}

// wireAppendEntries is the over-the-wire shape of AppendEntriesArgs:
// Entries is carried as an opaque (possibly compressed) blob so large
// replication batches can skip the JSON array entirely.
type wireAppendEntries struct {
	Term         uint64
	LeaderID     string
	PrevLogIndex uint64
	PrevLogTerm  uint64
	LeaderCommit uint64
	Algo         Algorithm
	EntriesBlob  []byte
}

// SendAppendEntries implements raft.Transport, compressing the entry
// batch when it's large enough to be worth the CPU.
func (p *Peers) SendAppendEntries(ctx context.Context, peerID string, args raft.AppendEntriesArgs) (raft.AppendEntriesReply, error) {
	raw, err := json.Marshal(args.Entries)
	if err != nil {
		return raft.AppendEntriesReply{}, fmt.Errorf("marshaling entries: %w", err)
	}
	algo, blob, err := compress(p.compressAs, raw)
	if err != nil {
		return raft.AppendEntriesReply{}, fmt.Errorf("compressing entries: %w", err)
	}

	wire := wireAppendEntries{
		Term:         args.Term,
		LeaderID:     args.LeaderID,
		PrevLogIndex: args.PrevLogIndex,
		PrevLogTerm:  args.PrevLogTerm,
		LeaderCommit: args.LeaderCommit,
		Algo:         algo,
		EntriesBlob:  blob,
	}

	var reply raft.AppendEntriesReply
	err = p.roundTrip(ctx, peerID, msgAppendEntries, wire, msgAppendEntriesResp, &reply)
	return reply, err
}

// decodeWireAppendEntries reverses SendAppendEntries' wire encoding, for
// use by the inbound RPC handler in tcp.go.
func decodeWireAppendEntries(w wireAppendEntries) (raft.AppendEntriesArgs, error) {
	raw, err := decompress(w.Algo, w.EntriesBlob)
	if err != nil {
		return raft.AppendEntriesArgs{}, fmt.Errorf("decompressing entries: %w", err)
	}
	var entries []raft.LogEntry
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return raft.AppendEntriesArgs{}, fmt.Errorf("unmarshaling entries: %w", err)
		}
	}
	return raft.AppendEntriesArgs{
		Term:         w.Term,
		LeaderID:     w.LeaderID,
		PrevLogIndex: w.PrevLogIndex,
		PrevLogTerm:  w.PrevLogTerm,
		Entries:      entries,
		LeaderCommit: w.LeaderCommit,
	}, nil
}
