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
	"fmt"
	"net"
	"time"

	"raftkv/internal/raft"
)

// Client is a single-node RPC client used by raftctl for client-facing
// operations (SubmitCommand, Isolate, Status), as opposed to Peers,
// which the raft core uses for inter-node RPCs.
type Client struct {
	addr        string
	auth        *authenticator
	tlsConfig   *tls.Config
	dialTimeout time.Duration
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Addr          string
	ClusterSecret string
	TLSConfig     *tls.Config
	DialTimeout   time.Duration
}

// NewClient builds a Client dialing a single node at Addr.
func NewClient(cfg ClientConfig) (*Client, error) {
	c := &Client{addr: cfg.Addr, tlsConfig: cfg.TLSConfig, dialTimeout: cfg.DialTimeout}
	if c.dialTimeout == 0 {
		c.dialTimeout = 2 * time.Second
	}
	if cfg.ClusterSecret != "" {
		a, err := newAuthenticator(cfg.ClusterSecret)
		if err != nil {
			return nil, err
		}
		c.auth = a
	}
	return c, nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	if c.tlsConfig != nil {
		return tls.DialWithDialer(&dialer, "tcp", c.addr, c.tlsConfig)
	}
	return dialer.DialContext(ctx, "tcp", c.addr)
}

func (c *Client) roundTrip(ctx context.Context, reqType msgType, req any, respType msgType, resp any) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if c.auth != nil {
		if err := writeAuthenticatedFrame(conn, c.auth, reqType, req); err != nil {
			return err
		}
	} else if err := writeFrame(conn, reqType, req); err != nil {
		return err
	}

	var gotType msgType
	if c.auth != nil {
		gotType, err = readAuthenticatedFrame(conn, c.auth, resp)
	} else {
		gotType, err = readFrame(conn, resp)
	}
	if err != nil {
		return err
	}
	if gotType != respType {
		return fmt.Errorf("unexpected response type %d (wanted %d)", gotType, respType)
	}
	return nil
}

// SubmitCommand submits a command to the node at Addr and waits for its
// outcome.
func (c *Client) SubmitCommand(ctx context.Context, command string) (raft.SubmitResult, error) {
	var resp raft.SubmitResult
	err := c.roundTrip(ctx, msgSubmitCommand, submitCommandReq{Command: command}, msgSubmitCommandResp, &resp)
	return resp, err
}

// Isolate sets the node's test-only isolation set.
func (c *Client) Isolate(ctx context.Context, peerIDs []string) error {
	var resp isolateResp
	return c.roundTrip(ctx, msgIsolate, isolateReq{PeerIDs: peerIDs}, msgIsolateResp, &resp)
}

// Status fetches the node's current introspection status.
func (c *Client) Status(ctx context.Context) (raft.Status, error) {
	var resp raft.Status
	err := c.roundTrip(ctx, msgStatus, struct{}{}, msgStatusResp, &resp)
	return resp, err
}
