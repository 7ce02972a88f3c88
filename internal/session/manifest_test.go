package session

import (
	"strings"
	"testing"

	"github.com/mfelix/quibble/internal/store"
)

func newTestManager(t *testing.T) (*Manager, store.Store) {
	t.Helper()
	s := store.NewMemStore()
	m, err := New(s, "doc-20250101-000000-abc123", "/in/doc.md", "/out/doc.md", 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, s
}

func TestNewManifestPersisted(t *testing.T) {
	m, s := newTestManager(t)

	got := m.Manifest()
	if got.Status != StatusInProgress {
		t.Errorf("status = %q", got.Status)
	}
	if got.CurrentRound != 1 || got.CurrentPhase != PhasePending {
		t.Errorf("position = round %d phase %q", got.CurrentRound, got.CurrentPhase)
	}
	if got.CompletedAt != nil {
		t.Error("completed_at set on fresh session")
	}

	ok, err := s.Exists(ManifestPath)
	if err != nil || !ok {
		t.Fatalf("manifest not persisted: ok=%v err=%v", ok, err)
	}
}

func TestPhaseTransitionsPersist(t *testing.T) {
	m, s := newTestManager(t)

	if err := m.SetPhase(PhaseCodexReview); err != nil {
		t.Fatalf("SetPhase: %v", err)
	}
	loaded, err := Load(s, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Manifest().CurrentPhase != PhaseCodexReview {
		t.Errorf("persisted phase = %q", loaded.Manifest().CurrentPhase)
	}

	if err := m.SetPhase("nonsense"); err == nil {
		t.Error("expected error for unknown phase")
	}
}

func TestStartRoundMonotonic(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.StartRound(2); err != nil {
		t.Fatalf("StartRound(2): %v", err)
	}
	if m.Manifest().CurrentRound != 2 || m.Manifest().CurrentPhase != PhasePending {
		t.Errorf("got round %d phase %q", m.Manifest().CurrentRound, m.Manifest().CurrentPhase)
	}
	if err := m.StartRound(1); err == nil {
		t.Error("expected error moving round counter backward")
	}
}

func TestCompleteIsTerminal(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Complete(StatusCompleted, Statistics{IssuesResolved: 1}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got := m.Manifest()
	if got.CompletedAt == nil || got.CurrentPhase != PhaseComplete {
		t.Errorf("finalization incomplete: %+v", got)
	}

	// at most once per session
	if err := m.Complete(StatusFailed, Statistics{}); err == nil {
		t.Error("expected error on second Complete")
	}
	if err := m.SetPhase(PhaseCodexReview); err == nil {
		t.Error("expected error on SetPhase after terminal status")
	}
	if err := m.StartRound(3); err == nil {
		t.Error("expected error on StartRound after terminal status")
	}
}

func TestCompleteRejectsNonTerminalStatus(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Complete(StatusInProgress, Statistics{}); err == nil {
		t.Error("expected error for in_progress as terminal status")
	}
}

func TestLoadRecomputesStatistics(t *testing.T) {
	m, s := newTestManager(t)
	// Poison the stored statistics; Load must replace them via recompute.
	if err := m.SetStatistics(Statistics{IssuesResolved: 99}); err != nil {
		t.Fatalf("SetStatistics: %v", err)
	}

	recompute := func(st store.Store, rounds int) (Statistics, error) {
		return Statistics{IssuesResolved: 2, TotalIssuesRaised: 3}, nil
	}
	loaded, err := Load(s, recompute)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.Manifest().Statistics; got.IssuesResolved != 2 || got.TotalIssuesRaised != 3 {
		t.Errorf("statistics not recomputed on load: %+v", got)
	}
}

func TestLoadMissingManifest(t *testing.T) {
	_, err := Load(store.NewMemStore(), nil)
	if err == nil || !strings.Contains(err.Error(), "no manifest") {
		t.Errorf("expected no-manifest error, got %v", err)
	}
}

func TestResumePointDiscovery(t *testing.T) {
	const n = 3

	cases := []struct {
		name      string
		artifacts []string
		wantRound int
		wantPhase string
	}{
		{"no artifacts", nil, n, PhaseCodexReview},
		{"review only", []string{ReviewPath(n)}, n, PhaseClaudeResponse},
		{"review+response", []string{ReviewPath(n), ResponsePath(n)}, n, PhaseConsensusCheck},
		{"review+response+document", []string{ReviewPath(n), ResponsePath(n), DocumentPath(n)}, n + 1, PhasePending},
		// consensus payload presence alone never changes the resume point
		{"review+response+consensus", []string{ReviewPath(n), ResponsePath(n), ConsensusPath(n)}, n, PhaseConsensusCheck},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := store.NewMemStore()
			m, err := New(s, "sess", "/in", "/out", 5)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := m.StartRound(n); err != nil {
				t.Fatalf("StartRound: %v", err)
			}
			for _, p := range tc.artifacts {
				if err := s.Write(p, []byte("{}")); err != nil {
					t.Fatalf("Write %s: %v", p, err)
				}
			}

			round, phase, err := m.ResumePoint()
			if err != nil {
				t.Fatalf("ResumePoint: %v", err)
			}
			if round != tc.wantRound || phase != tc.wantPhase {
				t.Errorf("ResumePoint = (%d, %s), want (%d, %s)",
					round, phase, tc.wantRound, tc.wantPhase)
			}
		})
	}
}

func TestRoundArtifactsWriteOnce(t *testing.T) {
	s := store.NewMemStore()
	review := &ReviewPayload{OverallAssessment: "fine"}
	if err := WriteReview(s, 1, review); err != nil {
		t.Fatalf("WriteReview: %v", err)
	}
	if err := WriteReview(s, 1, review); err == nil {
		t.Error("expected error on second write of round artifact")
	}

	if err := WriteDocument(s, 1, "text"); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	if err := WriteDocument(s, 1, "other"); err == nil {
		t.Error("expected error on document overwrite")
	}

	got, ok, err := ReadReview(s, 1)
	if err != nil || !ok {
		t.Fatalf("ReadReview: ok=%v err=%v", ok, err)
	}
	if got.OverallAssessment != "fine" {
		t.Errorf("assessment = %q", got.OverallAssessment)
	}
}
