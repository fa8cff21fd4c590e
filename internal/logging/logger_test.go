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

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level.String() = %v, want %v", got, tt.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DEBUG},
		{"debug", DEBUG},
		{"INFO", INFO},
		{"WARN", WARN},
		{"WARNING", WARN},
		{"ERROR", ERROR},
		{"", INFO}, // default, matches config.Config's LogLevel zero value
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

// TestElectionLoggingTextOutput mirrors internal/raft/election.go's
// "starting election" call: a raft-scoped logger with a term field
// rendered as a decimal string (itoa), the way the core logs it rather
// than letting %v print a raw uint64.
func TestElectionLoggingTextOutput(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	SetGlobalLevel(DEBUG)
	SetJSONMode(false)

	logger := NewLogger("raft")
	logger.Info("starting election", "term", "4")

	output := buf.String()
	if !strings.Contains(output, "[INFO ]") {
		t.Errorf("expected [INFO ] in output, got: %s", output)
	}
	if !strings.Contains(output, "[raft]") {
		t.Errorf("expected [raft] component tag, got: %s", output)
	}
	if !strings.Contains(output, "starting election") {
		t.Errorf("expected message text, got: %s", output)
	}
	if !strings.Contains(output, "term=4") {
		t.Errorf("expected term=4 field, got: %s", output)
	}
}

// TestTransportLoggingJSONOutput mirrors internal/transport/tcp.go's
// "rpc service listening" call in JSON mode, the format a node uses
// when cfg.LogJSON is set for log shipping.
func TestTransportLoggingJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	SetGlobalLevel(DEBUG)
	SetJSONMode(true)
	defer SetJSONMode(false)

	logger := NewLogger("transport")
	logger.Info("rpc service listening", "addr", "127.0.0.1:7000")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if entry.Level != "INFO" {
		t.Errorf("expected level INFO, got: %s", entry.Level)
	}
	if entry.Component != "transport" {
		t.Errorf("expected component 'transport', got: %s", entry.Component)
	}
	if entry.Message != "rpc service listening" {
		t.Errorf("expected message 'rpc service listening', got: %s", entry.Message)
	}
	if entry.Fields["addr"] != "127.0.0.1:7000" {
		t.Errorf("expected addr field, got: %v", entry.Fields)
	}
}

// TestPersistenceFailureIsLoggedAtError mirrors internal/raft/state.go's
// fatal "persistence failure, aborting" call: it must log at ERROR and
// survive WARN-level filtering, since a node that can't persist state
// must not fail silently.
func TestPersistenceFailureIsLoggedAtError(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	SetGlobalLevel(WARN)
	SetJSONMode(false)
	defer SetGlobalLevel(INFO)

	logger := NewLogger("raft")
	logger.Debug("applied SET", "key", "foo") // statemachine-level debug noise, filtered
	logger.Error("persistence failure, aborting", "error", "disk full")

	output := buf.String()
	if strings.Contains(output, "applied SET") {
		t.Error("DEBUG-level statemachine noise should be filtered out at WARN")
	}
	if !strings.Contains(output, "persistence failure, aborting") {
		t.Error("fatal persistence error must not be filtered out")
	}
	if !strings.Contains(output, "error=disk full") {
		t.Errorf("expected error field in output, got: %s", output)
	}
}

// TestNodeScopedLoggerCarriesIdentity mirrors how a node's drivers would
// scope a logger to its own NodeID via With, the way handlers.go's vote
// grants carry a candidate field alongside the base component tag.
func TestNodeScopedLoggerCarriesIdentity(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	SetGlobalLevel(DEBUG)
	SetJSONMode(false)

	base := NewLogger("raft")
	scoped := base.With("node", "node-2")
	scoped.Info("granted vote", "term", "7", "candidate", "node-1")

	output := buf.String()
	if !strings.Contains(output, "node=node-2") {
		t.Errorf("expected node=node-2 field carried from With, got: %s", output)
	}
	if !strings.Contains(output, "term=7") {
		t.Errorf("expected term=7 field, got: %s", output)
	}
	if !strings.Contains(output, "candidate=node-1") {
		t.Errorf("expected candidate=node-1 field, got: %s", output)
	}
}
