package cycle

import (
	"errors"
	"fmt"

	"github.com/mfelix/quibble/internal/agent"
	"github.com/mfelix/quibble/internal/extract"
)

// Machine-readable failure codes carried on error events.
const (
	CodeAgentFailure   = "agent_failure"
	CodeMalformed      = "malformed_output"
	CodeSchemaMismatch = "schema_mismatch"
	CodeStorage        = "storage_failure"
	CodeConfig         = "config_invalid"
)

// PhaseError annotates a failure with where it happened and whether
// resuming the session is likely to help.
type PhaseError struct {
	Round     int
	Phase     string
	Code      string
	Resumable bool
	Err       error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("round %d %s: %v", e.Round, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// classify maps an underlying failure to its event code and resumability.
func classify(err error) (code string, resumable bool) {
	switch {
	case errors.Is(err, extract.ErrNoPayload):
		return CodeMalformed, false
	case errors.Is(err, extract.ErrSchemaMismatch):
		return CodeSchemaMismatch, false
	case agent.IsTransient(err):
		return CodeAgentFailure, true
	default:
		return CodeAgentFailure, false
	}
}

func phaseErr(round int, phase string, err error) *PhaseError {
	code, resumable := classify(err)
	return &PhaseError{Round: round, Phase: phase, Code: code, Resumable: resumable, Err: err}
}

func storageErr(round int, phase string, err error) *PhaseError {
	// Storage problems are environmental; a resume after fixing the disk
	// usually succeeds.
	return &PhaseError{Round: round, Phase: phase, Code: CodeStorage, Resumable: true, Err: err}
}
