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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ElectionMinMS != 150 {
		t.Errorf("Expected default election_min_ms 150, got %d", cfg.ElectionMinMS)
	}
	if cfg.ElectionMaxMS != 300 {
		t.Errorf("Expected default election_max_ms 300, got %d", cfg.ElectionMaxMS)
	}
	if cfg.HeartbeatMS != 50 {
		t.Errorf("Expected default heartbeat_ms 50, got %d", cfg.HeartbeatMS)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log_level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogJSON != false {
		t.Errorf("Expected default log_json false, got %v", cfg.LogJSON)
	}
	if cfg.Compression != CompressionNone {
		t.Errorf("Expected default compression 'none', got '%s'", cfg.Compression)
	}
	if cfg.Peers == nil {
		t.Error("Expected non-nil Peers map")
	}
}

func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.NodeID = "node1"
		cfg.BindAddr = "127.0.0.1:7000"
		return cfg
	}

	tests := []struct {
		name    string
		cfg     func() *Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			cfg:     valid,
			wantErr: false,
		},
		{
			name: "missing node id",
			cfg: func() *Config {
				c := valid()
				c.NodeID = ""
				return c
			},
			wantErr: true,
		},
		{
			name: "missing bind addr",
			cfg: func() *Config {
				c := valid()
				c.BindAddr = ""
				return c
			},
			wantErr: true,
		},
		{
			name: "election min not less than max",
			cfg: func() *Config {
				c := valid()
				c.ElectionMinMS = 300
				c.ElectionMaxMS = 300
				return c
			},
			wantErr: true,
		},
		{
			name: "heartbeat too large relative to election min",
			cfg: func() *Config {
				c := valid()
				c.HeartbeatMS = 100
				c.ElectionMinMS = 150
				return c
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			cfg: func() *Config {
				c := valid()
				c.LogLevel = "verbose"
				return c
			},
			wantErr: true,
		},
		{
			name: "invalid compression",
			cfg: func() *Config {
				c := valid()
				c.Compression = "rot13"
				return c
			},
			wantErr: true,
		},
		{
			name: "tls enabled without cluster secret",
			cfg: func() *Config {
				c := valid()
				c.TLSEnabled = true
				return c
			},
			wantErr: true,
		},
		{
			name: "tls enabled with cluster secret",
			cfg: func() *Config {
				c := valid()
				c.TLSEnabled = true
				c.ClusterSecret = "s3cr3t"
				return c
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg().Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "raftkv_config_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configContent := `{
  "node_id": "node2",
  "bind_addr": "127.0.0.1:7001",
  "peers": {"node1": "127.0.0.1:7000", "node3": "127.0.0.1:7002"},
  "election_min_ms": 150,
  "election_max_ms": 300,
  "heartbeat_ms": 50,
  "log_level": "debug",
  "log_json": true
}`

	configPath := filepath.Join(tmpDir, "config.json")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.NodeID != "node2" {
		t.Errorf("Expected node_id 'node2', got '%s'", cfg.NodeID)
	}
	if cfg.BindAddr != "127.0.0.1:7001" {
		t.Errorf("Expected bind_addr '127.0.0.1:7001', got '%s'", cfg.BindAddr)
	}
	if len(cfg.Peers) != 2 {
		t.Errorf("Expected 2 peers, got %d", len(cfg.Peers))
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log_level 'debug', got '%s'", cfg.LogLevel)
	}
	if cfg.LogJSON != true {
		t.Errorf("Expected log_json true, got %v", cfg.LogJSON)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected loaded config to validate, got %v", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile("/nonexistent/config.json"); err == nil {
		t.Error("expected error loading nonexistent file")
	}
}

func TestSaveToFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "raftkv_config_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := DefaultConfig()
	cfg.NodeID = "node1"
	cfg.BindAddr = "127.0.0.1:7000"

	configPath := filepath.Join(tmpDir, "subdir", "config.json")
	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	loaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.NodeID != "node1" {
		t.Errorf("Expected node_id 'node1', got '%s'", loaded.NodeID)
	}
	if loaded.BindAddr != "127.0.0.1:7000" {
		t.Errorf("Expected bind_addr '127.0.0.1:7000', got '%s'", loaded.BindAddr)
	}
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NodeID = "node1"
	cfg.BindAddr = "127.0.0.1:7000"

	str := cfg.String()
	if !contains(str, "NodeID:") {
		t.Error("String() missing NodeID")
	}
	if !contains(str, "node1") {
		t.Error("String() missing node id value")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return len(substr) == 0
}
