// Package event defines the orchestrator's typed event stream. Events
// are observational: consumers render or record them but are never
// consulted for control decisions.
package event

import (
	"time"

	"github.com/mfelix/quibble/internal/session"
)

// Event types, in rough emission order within a session.
const (
	TypeSessionStart    = "session_start"
	TypeRoundStart      = "round_start"
	TypeAgentChunk      = "agent_chunk"
	TypeReviewFindings  = "review_findings"
	TypeResponseSummary = "response_summary"
	TypeConsensus       = "consensus"
	TypeRoundTiming     = "round_timing"
	TypeCompletion      = "completion"
	TypeError           = "error"
)

// Event is one entry in the session's ordered event stream. Only the
// fields relevant to the type are populated.
type Event struct {
	Type      string    `json:"type"`
	TS        time.Time `json:"ts"`
	SessionID string    `json:"session_id"`
	Round     int       `json:"round,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	Agent     string    `json:"agent,omitempty"`

	// agent_chunk
	Chunk string `json:"chunk,omitempty"`

	// review_findings
	Issues        int `json:"issues,omitempty"`
	Opportunities int `json:"opportunities,omitempty"`

	// response_summary
	Agreed    int  `json:"agreed,omitempty"`
	Disagreed int  `json:"disagreed,omitempty"`
	Partial   int  `json:"partial,omitempty"`
	Claimed   bool `json:"consensus_claimed,omitempty"`

	// consensus
	Verdict string `json:"verdict,omitempty"`

	// round_timing
	DurationMS int64 `json:"duration_ms,omitempty"`

	// completion
	Status     string              `json:"status,omitempty"`
	ExitCode   int                 `json:"exit_code,omitempty"`
	Statistics *session.Statistics `json:"statistics,omitempty"`

	// error
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Resumable bool   `json:"resumable,omitempty"`
}

// Sink consumes events. Implementations must not block the orchestrator.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops all events.
var Discard = SinkFunc(func(Event) {})

// Multi fans an event out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			s.Emit(e)
		}
	})
}

// Stamp fills the timestamp if the producer left it zero.
func Stamp(e Event) Event {
	if e.TS.IsZero() {
		e.TS = time.Now().UTC()
	}
	return e
}
