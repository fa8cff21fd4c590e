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
Package durablestore persists a node's PersistentState — current term,
voted-for candidate, and the replicated log — to a single JSON file on
disk. Every write lands via write-to-temp-then-rename-then-fsync so a
crash mid-write never leaves a torn file behind.
*/
package durablestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"raftkv/internal/logging"
	"raftkv/internal/raftkverrors"
)

var log = logging.NewLogger("durablestore")

// LogEntry is a single replicated log entry, 1-based dense indexing.
type LogEntry struct {
	Index   uint64 `json:"index"`
	Term    uint64 `json:"term"`
	Command string `json:"command"`
}

// PersistentState is the subset of Raft state that must be durable
// before a reply to RequestVote/AppendEntries is sent.
type PersistentState struct {
	CurrentTerm uint64     `json:"current_term"`
	VotedFor    string     `json:"voted_for"`
	Log         []LogEntry `json:"log"`
}

// Store manages a single node's on-disk PersistentState file.
type Store struct {
	mu       sync.Mutex
	nodeID   string
	dataDir  string
	filePath string
}

// Open prepares a Store rooted at dataDir for nodeID, creating the
// directory if necessary. It does not load state; call Load explicitly.
func Open(nodeID, dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, raftkverrors.ErrPersistenceFailed("creating data directory", err)
	}
	return &Store{
		nodeID:   nodeID,
		dataDir:  dataDir,
		filePath: filepath.Join(dataDir, fmt.Sprintf("node_%s_state.json", nodeID)),
	}, nil
}

// Load reads the persisted state from disk. A missing file is not an
// error: a brand-new node starts with zero-value PersistentState
// (currentTerm=0, votedFor="", empty log).
func (s *Store) Load() (PersistentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return PersistentState{}, nil
	}
	if err != nil {
		return PersistentState{}, raftkverrors.ErrPersistenceFailed("reading state file", err)
	}

	var st PersistentState
	if err := json.Unmarshal(data, &st); err != nil {
		return PersistentState{}, raftkverrors.ErrPersistenceFailed("parsing state file", err)
	}
	log.Info("loaded persistent state", "term", fmt.Sprint(st.CurrentTerm), "log_len", fmt.Sprint(len(st.Log)))
	return st, nil
}

// Save durably writes st to disk: marshal, write to a temp file in the
// same directory, fsync the temp file, rename over the target, then
// fsync the directory entry. Any failure is wrapped as a fatal
// raftkverrors.ErrPersistenceFailed — the caller must treat this as
// unrecoverable.
func (s *Store) Save(st PersistentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return raftkverrors.ErrPersistenceFailed("marshaling state", err)
	}

	tmpPath := s.filePath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return raftkverrors.ErrPersistenceFailed("opening temp state file", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return raftkverrors.ErrPersistenceFailed("writing temp state file", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return raftkverrors.ErrPersistenceFailed("fsyncing temp state file", err)
	}
	if err := f.Close(); err != nil {
		return raftkverrors.ErrPersistenceFailed("closing temp state file", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return raftkverrors.ErrPersistenceFailed("renaming state file into place", err)
	}
	if dir, err := os.Open(s.dataDir); err == nil {
		dir.Sync()
		dir.Close()
	}
	return nil
}
