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

/*
Package config loads and validates a RaftKV node's startup configuration:
node identity, peer addresses, election/heartbeat timing, and the
optional domain-stack toggles (pre-vote, compression, transport auth,
TLS, LAN discovery).
*/
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"raftkv/internal/raftkverrors"
)

// Compression names the payload compression algorithm a node's transport
// applies to large AppendEntries batches.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionGzip   Compression = "gzip"
	CompressionLZ4    Compression = "lz4"
	CompressionSnappy Compression = "snappy"
	CompressionZstd   Compression = "zstd"
)

// Config is a RaftKV node's full startup configuration.
type Config struct {
	NodeID string            `json:"node_id"`
	BindAddr string          `json:"bind_addr"`
	Peers  map[string]string `json:"peers"`

	ElectionMinMS int `json:"election_min_ms"`
	ElectionMaxMS int `json:"election_max_ms"`
	HeartbeatMS   int `json:"heartbeat_ms"`

	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	LogJSON  bool   `json:"log_json"`

	EnablePreVote bool        `json:"enable_pre_vote"`
	Compression   Compression `json:"compression"`
	TLSEnabled    bool        `json:"tls_enabled"`
	ClusterSecret string      `json:"cluster_secret"`
	DiscoverLAN   bool        `json:"discover_lan"`
}

// DefaultConfig returns a Config carrying a conservative default
// election/heartbeat timing (150/300/50 ms) and an otherwise empty
// cluster identity, which the caller must fill in before Validate will
// accept it.
func DefaultConfig() *Config {
	return &Config{
		Peers:         make(map[string]string),
		ElectionMinMS: 150,
		ElectionMaxMS: 300,
		HeartbeatMS:   50,
		DataDir:       ".",
		LogLevel:      "info",
		LogJSON:       false,
		Compression:   CompressionNone,
	}
}

// LoadFile loads a JSON-encoded Config from path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, raftkverrors.ErrInvalidConfig(fmt.Sprintf("reading %s: %v", path, err))
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, raftkverrors.ErrInvalidConfig(fmt.Sprintf("parsing %s: %v", path, err))
	}
	if cfg.Peers == nil {
		cfg.Peers = make(map[string]string)
	}
	return cfg, nil
}

// SaveToFile writes cfg as indented JSON to path, creating any missing
// parent directories.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return raftkverrors.ErrInvalidConfig(fmt.Sprintf("marshaling config: %v", err))
	}
	if dir := dirOf(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return raftkverrors.ErrInvalidConfig(fmt.Sprintf("creating %s: %v", dir, err))
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return raftkverrors.ErrInvalidConfig(fmt.Sprintf("writing %s: %v", path, err))
	}
	return nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

// Validate enforces the heartbeat/election timing constraint (heartbeat
// must stay well below the election timeout range, or followers will
// spuriously time out a live leader) and basic identity sanity checks.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return raftkverrors.ErrInvalidConfig("node_id must not be empty")
	}
	if c.BindAddr == "" {
		return raftkverrors.ErrInvalidConfig("bind_addr must not be empty")
	}
	if c.HeartbeatMS <= 0 {
		return raftkverrors.ErrInvalidConfig("heartbeat_ms must be positive")
	}
	if c.ElectionMinMS >= c.ElectionMaxMS {
		return raftkverrors.ErrInvalidConfig(
			fmt.Sprintf("election_min_ms (%d) must be less than election_max_ms (%d)", c.ElectionMinMS, c.ElectionMaxMS))
	}
	if c.HeartbeatMS*3 > c.ElectionMinMS {
		return raftkverrors.ErrInvalidConfig(
			fmt.Sprintf("heartbeat_ms*3 (%d) must not exceed election_min_ms (%d)", c.HeartbeatMS*3, c.ElectionMinMS))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return raftkverrors.ErrInvalidConfig(fmt.Sprintf("unknown log_level %q", c.LogLevel))
	}
	switch c.Compression {
	case "", CompressionNone, CompressionGzip, CompressionLZ4, CompressionSnappy, CompressionZstd:
	default:
		return raftkverrors.ErrInvalidConfig(fmt.Sprintf("unknown compression %q", c.Compression))
	}
	if c.TLSEnabled && c.ClusterSecret == "" {
		return raftkverrors.ErrInvalidConfig("tls_enabled requires cluster_secret")
	}
	return nil
}

// String renders a human-readable one-line summary of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"NodeID: %s  BindAddr: %s  Peers: %d  Election: %d-%dms  Heartbeat: %dms  LogLevel: %s",
		c.NodeID, c.BindAddr, len(c.Peers), c.ElectionMinMS, c.ElectionMaxMS, c.HeartbeatMS, c.LogLevel)
}
