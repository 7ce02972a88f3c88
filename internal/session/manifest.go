package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mfelix/quibble/internal/store"
)

// Manager owns the persisted manifest and its phase transitions. Exactly
// one Manager writes a given session's namespace.
type Manager struct {
	store    store.Store
	manifest Manifest
}

// RecomputeFunc rebuilds statistics from the persisted rounds 1..n.
// Supplied by the aggregator; the session package never trusts the
// manifest's stored totals.
type RecomputeFunc func(s store.Store, rounds int) (Statistics, error)

// New creates a fresh session manifest and persists it.
func New(s store.Store, sessionID, inputFile, outputFile string, maxRounds int) (*Manager, error) {
	m := &Manager{
		store: s,
		manifest: Manifest{
			SessionID:    sessionID,
			InputFile:    inputFile,
			OutputFile:   outputFile,
			StartedAt:    time.Now().UTC(),
			Status:       StatusInProgress,
			CurrentRound: 1,
			CurrentPhase: PhasePending,
			MaxRounds:    maxRounds,
		},
	}
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads an existing manifest and recomputes its statistics from the
// artifacts actually on disk, so a stale or hand-edited manifest can
// never mislead decision-making.
func Load(s store.Store, recompute RecomputeFunc) (*Manager, error) {
	content, ok, err := s.Read(ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("no manifest found in session store")
	}
	m := &Manager{store: s}
	if err := json.Unmarshal(content, &m.manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if recompute != nil {
		st, err := recompute(s, m.manifest.CurrentRound)
		if err != nil {
			return nil, fmt.Errorf("recompute statistics: %w", err)
		}
		m.manifest.Statistics = st
	}
	return m, nil
}

// Manifest returns a copy of the current manifest state.
func (m *Manager) Manifest() Manifest { return m.manifest }

func (m *Manager) save() error {
	content, err := json.MarshalIndent(m.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := m.store.Write(ManifestPath, content); err != nil {
		return fmt.Errorf("persist manifest: %w", err)
	}
	return nil
}

// StartRound advances to round n at phase pending and persists. The round
// counter never moves backward.
func (m *Manager) StartRound(n int) error {
	if m.manifest.Status != StatusInProgress {
		return fmt.Errorf("session %s is already %s", m.manifest.SessionID, m.manifest.Status)
	}
	if n < m.manifest.CurrentRound {
		return fmt.Errorf("round %d precedes current round %d", n, m.manifest.CurrentRound)
	}
	m.manifest.CurrentRound = n
	m.manifest.CurrentPhase = PhasePending
	return m.save()
}

// SetPhase records a phase transition durably before the phase's work
// begins, so a crash never loses a completed phase.
func (m *Manager) SetPhase(phase string) error {
	switch phase {
	case PhasePending, PhaseCodexReview, PhaseClaudeResponse, PhaseConsensusCheck, PhaseComplete:
	default:
		return fmt.Errorf("unknown phase %q", phase)
	}
	if m.manifest.Status != StatusInProgress {
		return fmt.Errorf("session %s is already %s", m.manifest.SessionID, m.manifest.Status)
	}
	m.manifest.CurrentPhase = phase
	return m.save()
}

// SetStatistics stores freshly recomputed statistics without changing
// phase or status.
func (m *Manager) SetStatistics(st Statistics) error {
	m.manifest.Statistics = st
	return m.save()
}

// Complete finalizes the session. Terminal: at most once per session.
func (m *Manager) Complete(status string, st Statistics) error {
	if m.manifest.Status != StatusInProgress {
		return fmt.Errorf("session %s already finalized as %s", m.manifest.SessionID, m.manifest.Status)
	}
	switch status {
	case StatusCompleted, StatusFailed, StatusMaxRounds, StatusMaxRoundsWarning, StatusMaxRoundsUnsafe:
	default:
		return fmt.Errorf("invalid terminal status %q", status)
	}
	now := time.Now().UTC()
	m.manifest.Status = status
	m.manifest.CompletedAt = &now
	m.manifest.CurrentPhase = PhaseComplete
	m.manifest.Statistics = st
	return m.save()
}

// ResumePoint determines where an interrupted session should continue.
// Side-effect free. The existence checks run in reverse order of artifact
// creation within the manifest's current round, so the first hit is the
// latest durably completed phase:
//
//	document snapshot  -> next round, pending
//	response payload   -> this round, consensus_check
//	review payload     -> this round, claude_response
//	nothing            -> this round, codex_review
func (m *Manager) ResumePoint() (round int, phase string, err error) {
	n := m.manifest.CurrentRound
	if n < 1 {
		n = 1
	}

	if ok, err := m.store.Exists(DocumentPath(n)); err != nil {
		return 0, "", err
	} else if ok {
		return n + 1, PhasePending, nil
	}
	if ok, err := m.store.Exists(ResponsePath(n)); err != nil {
		return 0, "", err
	} else if ok {
		return n, PhaseConsensusCheck, nil
	}
	if ok, err := m.store.Exists(ReviewPath(n)); err != nil {
		return 0, "", err
	} else if ok {
		return n, PhaseClaudeResponse, nil
	}
	return n, PhaseCodexReview, nil
}
