package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runWithArgs(t *testing.T, args ...string) error {
	t.Helper()
	cmd := runCmd()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestDefaultOutputPath(t *testing.T) {
	cases := map[string]string{
		"/tmp/draft.md": "/tmp/draft.reviewed.md",
		"/tmp/notes":    "/tmp/notes.reviewed",
		"/a/b.plan.md":  "/a/b.plan.reviewed.md",
	}
	for in, want := range cases {
		if got := defaultOutputPath(in); got != want {
			t.Errorf("defaultOutputPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunRejectsMissingInput(t *testing.T) {
	t.Setenv("QUIBBLE_DATA_DIR", t.TempDir())

	err := runWithArgs(t, filepath.Join(t.TempDir(), "nope.md"))
	if err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestRunRejectsOversizedInput(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("QUIBBLE_DATA_DIR", dataDir)

	input := filepath.Join(t.TempDir(), "big.md")
	if err := os.WriteFile(input, make([]byte, maxInputBytes+1), 0o644); err != nil {
		t.Fatal(err)
	}

	err := runWithArgs(t, input)
	if err == nil {
		t.Fatal("expected error for oversized input")
	}
	if !strings.Contains(err.Error(), "max is") {
		t.Errorf("error = %v", err)
	}

	// invalid input must never leave a partial session behind
	entries, _ := os.ReadDir(filepath.Join(dataDir, "sessions"))
	if len(entries) != 0 {
		t.Errorf("partial session created: %v", entries)
	}
}

func TestRunRejectsOutputEqualInput(t *testing.T) {
	t.Setenv("QUIBBLE_DATA_DIR", t.TempDir())

	input := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(input, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := runWithArgs(t, input, "-o", input)
	if err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Errorf("err = %v", err)
	}
}

func TestRunRejectsInvalidMaxRounds(t *testing.T) {
	t.Setenv("QUIBBLE_DATA_DIR", t.TempDir())

	input := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(input, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := runWithArgs(t, input, "--max-rounds", "0")
	if err == nil || !strings.Contains(err.Error(), "max_rounds") {
		t.Errorf("err = %v", err)
	}
}

func TestRunRejectsBadContextDir(t *testing.T) {
	t.Setenv("QUIBBLE_DATA_DIR", t.TempDir())

	input := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(input, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := runWithArgs(t, input, "--context-dir", filepath.Join(t.TempDir(), "gone"))
	if err == nil || !strings.Contains(err.Error(), "context dir") {
		t.Errorf("err = %v", err)
	}
}
