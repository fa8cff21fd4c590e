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
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/netutil"

	"raftkv/internal/raft"
)

// maxConcurrentConns bounds the RPC Service's handler worker pool so a
// burst of peer dials can't exhaust file descriptors.
const maxConcurrentConns = 256

// Server is the RPC Service: it accepts inbound peer and client
// connections and dispatches each frame against a *raft.Node.
type Server struct {
	node      *raft.Node
	auth      *authenticator
	tlsConfig *tls.Config

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// ServerConfig configures the RPC Service.
type ServerConfig struct {
	Node          *raft.Node
	ClusterSecret string      // empty disables frame authentication
	TLSConfig     *tls.Config // nil disables TLS
}

// NewServer builds an RPC Service bound to node.
func NewServer(cfg ServerConfig) (*Server, error) {
	s := &Server{node: cfg.Node, tlsConfig: cfg.TLSConfig}
	if cfg.ClusterSecret != "" {
		a, err := newAuthenticator(cfg.ClusterSecret)
		if err != nil {
			return nil, err
		}
		s.auth = a
	}
	return s, nil
}

// Serve listens on bindAddr and accepts connections until Close is
// called. It blocks; call it from its own goroutine.
func (s *Server) Serve(bindAddr string) error {
	raw, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", bindAddr, err)
	}
	if s.tlsConfig != nil {
		raw = tls.NewListener(raw, s.tlsConfig)
	}
	limited := netutil.LimitListener(raw, maxConcurrentConns)

	s.mu.Lock()
	s.listener = limited
	s.mu.Unlock()

	log.Info("rpc service listening", "addr", bindAddr)

	for {
		conn, err := limited.Accept()
		if err != nil {
			return err
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Addr returns the listener's actual bound address, useful when
// bindAddr uses port 0 (tests).
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting new connections and waits for in-flight ones to
// finish.
func (s *Server) Close() error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	var err error
	if l != nil {
		err = l.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	for {
		if err := s.handleFrame(conn); err != nil {
			return
		}
	}
}

func (s *Server) readReq(conn net.Conn, out any) (msgType, error) {
	if s.auth != nil {
		return readAuthenticatedFrame(conn, s.auth, out)
	}
	return readFrame(conn, out)
}

func (s *Server) writeResp(conn net.Conn, t msgType, payload any) error {
	if s.auth != nil {
		return writeAuthenticatedFrame(conn, s.auth, t, payload)
	}
	return writeFrame(conn, t, payload)
}

func (s *Server) handleFrame(conn net.Conn) error {
	var raw json.RawMessage
	reqType, err := s.readReq(conn, &raw)
	if err != nil {
		return err
	}

	switch reqType {
	case msgRequestVote:
		var args raft.RequestVoteArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		reply := s.node.RequestVote(args)
		return s.writeResp(conn, msgRequestVoteResp, reply)

	case msgAppendEntries:
		var wire wireAppendEntries
		if err := json.Unmarshal(raw, &wire); err != nil {
			return err
		}
		args, decodeErr := decodeWireAppendEntries(wire)
		if decodeErr != nil {
			return decodeErr
		}
		reply := s.node.AppendEntries(args)
		return s.writeResp(conn, msgAppendEntriesResp, reply)

	case msgSubmitCommand:
		var req submitCommandReq
		if err := json.Unmarshal(raw, &req); err != nil {
			return err
		}
		result := s.node.SubmitCommand(req.Command)
		return s.writeResp(conn, msgSubmitCommandResp, result)

	case msgIsolate:
		var req isolateReq
		if err := json.Unmarshal(raw, &req); err != nil {
			return err
		}
		s.node.Isolate(req.PeerIDs)
		return s.writeResp(conn, msgIsolateResp, isolateResp{OK: true})

	case msgStatus:
		return s.writeResp(conn, msgStatusResp, s.node.Status())

	default:
		return fmt.Errorf("unknown frame type %d", reqType)
	}
}

type submitCommandReq struct {
	Command string
}

type isolateReq struct {
	PeerIDs []string
}

type isolateResp struct {
	OK bool
}
