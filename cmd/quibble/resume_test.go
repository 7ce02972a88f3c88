package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mfelix/quibble/internal/session"
	"github.com/mfelix/quibble/internal/store"
)

func TestResumeUnknownSession(t *testing.T) {
	t.Setenv("QUIBBLE_DATA_DIR", t.TempDir())

	cmd := resumeCmd()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{"doc-20250101-000000-ffffff"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestResumeRejectsFinishedSession(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("QUIBBLE_DATA_DIR", dataDir)

	input := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(input, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	id := "doc-20250101-000000-abcdef"
	s, err := store.NewFSStore(filepath.Join(dataDir, "sessions", id))
	if err != nil {
		t.Fatal(err)
	}
	mgr, err := session.New(s, id, input, input+".out", 5)
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.Complete(session.StatusCompleted, session.Statistics{}); err != nil {
		t.Fatal(err)
	}

	cmd := resumeCmd()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{id})
	err = cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "already finished") {
		t.Errorf("err = %v", err)
	}
}
