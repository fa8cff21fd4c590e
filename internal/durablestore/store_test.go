/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 * Licensed under the Apache License, Version 2.0.
 */

package durablestore

import (
	"os"
	"testing"
)

func TestLoadMissingFileIsZeroValue(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open("node1", tmpDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.CurrentTerm != 0 || st.VotedFor != "" || len(st.Log) != 0 {
		t.Errorf("expected zero-value state, got %+v", st)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := Open("node1", tmpDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	want := PersistentState{
		CurrentTerm: 3,
		VotedFor:    "node2",
		Log: []LogEntry{
			{Index: 1, Term: 1, Command: "SET a 1"},
			{Index: 2, Term: 2, Command: "SET b 2"},
			{Index: 3, Term: 3, Command: "DELETE a"},
		},
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.CurrentTerm != want.CurrentTerm || got.VotedFor != want.VotedFor || len(got.Log) != len(want.Log) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
	for i, e := range got.Log {
		if e != want.Log[i] {
			t.Errorf("log[%d] = %+v, want %+v", i, e, want.Log[i])
		}
	}
}

func TestSaveOverwritesPreviousState(t *testing.T) {
	tmpDir := t.TempDir()
	s, _ := Open("node1", tmpDir)

	s.Save(PersistentState{CurrentTerm: 1, VotedFor: "node1"})
	s.Save(PersistentState{CurrentTerm: 5, VotedFor: "node3"})

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.CurrentTerm != 5 || got.VotedFor != "node3" {
		t.Errorf("Load() = %+v, want term=5 votedFor=node3", got)
	}
}

func TestSaveNoTempFileLeftBehind(t *testing.T) {
	tmpDir := t.TempDir()
	s, _ := Open("node1", tmpDir)

	if err := s.Save(PersistentState{CurrentTerm: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() == "node_node1_state.json.tmp" {
			t.Error("temp file left behind after Save")
		}
	}
}

func TestOpenCreatesDataDir(t *testing.T) {
	tmpDir := t.TempDir()
	nested := tmpDir + "/nested/data"
	if _, err := Open("node1", nested); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := os.Stat(nested); err != nil {
		t.Errorf("expected data dir to be created: %v", err)
	}
}
