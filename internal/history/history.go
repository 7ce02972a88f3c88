// Package history maintains a queryable index of past sessions. The
// session store remains the source of truth; the index only backs the
// list/show commands and is written best-effort, so a failure here never
// fails a review.
package history

import (
	"time"

	"github.com/mfelix/quibble/internal/session"
)

// SessionRecord is one indexed session.
type SessionRecord struct {
	ID                 string
	InputFile          string
	OutputFile         string
	StartedAt          time.Time
	CompletedAt        *time.Time
	Status             string
	Rounds             int
	IssuesRaised       int
	IssuesResolved     int
	CriticalUnresolved int
	MajorUnresolved    int
}

// RoundRecord is one indexed round.
type RoundRecord struct {
	SessionID        string
	Round            int
	Issues           int
	Opportunities    int
	ConsensusClaimed bool
	Verdict          string // approve/reject, empty when no consensus check ran
	DurationMS       int64
}

// Recorder indexes sessions and rounds.
type Recorder interface {
	SessionStarted(m session.Manifest) error
	RoundFinished(r RoundRecord) error
	SessionFinished(m session.Manifest) error
	ListSessions(limit int) ([]SessionRecord, error)
	GetSession(id string) (*SessionRecord, bool, error)
	Close() error
}

// Nop discards everything; used when persistence is disabled.
type Nop struct{}

func (Nop) SessionStarted(session.Manifest) error           { return nil }
func (Nop) RoundFinished(RoundRecord) error                 { return nil }
func (Nop) SessionFinished(session.Manifest) error          { return nil }
func (Nop) ListSessions(int) ([]SessionRecord, error)       { return nil, nil }
func (Nop) GetSession(string) (*SessionRecord, bool, error) { return nil, false, nil }
func (Nop) Close() error                                    { return nil }

func recordFromManifest(m session.Manifest) SessionRecord {
	return SessionRecord{
		ID:                 m.SessionID,
		InputFile:          m.InputFile,
		OutputFile:         m.OutputFile,
		StartedAt:          m.StartedAt,
		CompletedAt:        m.CompletedAt,
		Status:             m.Status,
		Rounds:             m.CurrentRound,
		IssuesRaised:       m.Statistics.TotalIssuesRaised,
		IssuesResolved:     m.Statistics.IssuesResolved,
		CriticalUnresolved: m.Statistics.CriticalUnresolved,
		MajorUnresolved:    m.Statistics.MajorUnresolved,
	}
}
