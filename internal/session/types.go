// Package session defines the durable session model: the manifest, the
// per-round artifact payloads, the phase state machine, and resume-point
// discovery over the artifact store.
package session

import "time"

// Session status values. Terminal once set to anything but StatusInProgress.
const (
	StatusInProgress       = "in_progress"
	StatusCompleted        = "completed"
	StatusFailed           = "failed"
	StatusMaxRounds        = "max_rounds_reached"
	StatusMaxRoundsWarning = "max_rounds_reached_warning"
	StatusMaxRoundsUnsafe  = "max_rounds_reached_unsafe"
)

// Round phases, in execution order.
const (
	PhasePending        = "pending"
	PhaseCodexReview    = "codex_review"
	PhaseClaudeResponse = "claude_response"
	PhaseConsensusCheck = "consensus_check"
	PhaseComplete       = "complete"
)

// Issue severities and opportunity impact levels.
const (
	SeverityCritical = "critical"
	SeverityMajor    = "major"
	SeverityMinor    = "minor"

	ImpactHigh   = "high"
	ImpactMedium = "medium"
	ImpactLow    = "low"
)

// Feedback id prefixes distinguish issue-type from opportunity-type items
// during aggregation.
const (
	IssueIDPrefix = "issue-"
	OppIDPrefix   = "opp-"
)

// Author verdicts on individual feedback items.
const (
	VerdictAgree    = "agree"
	VerdictDisagree = "disagree"
	VerdictPartial  = "partial"
)

// Reviewer resolution statuses in the consensus check.
const (
	ResolutionResolved        = "resolved"
	ResolutionInadequate      = "inadequate"
	ResolutionValidlyDisputed = "validly_disputed"
	ResolutionNewIssues       = "new_issues"
)

// Consensus-check final verdicts.
const (
	ConsensusApprove = "approve"
	ConsensusReject  = "reject"
)

// Issue is a single problem raised by the reviewer.
type Issue struct {
	ID          string `json:"id"`
	Severity    string `json:"severity"`
	Section     string `json:"section"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// Opportunity is a non-defect improvement suggested by the reviewer.
type Opportunity struct {
	ID          string `json:"id"`
	Impact      string `json:"impact"`
	Section     string `json:"section"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// ReviewPayload is the reviewer's output for one round.
type ReviewPayload struct {
	Issues            []Issue       `json:"issues"`
	Opportunities     []Opportunity `json:"opportunities"`
	OverallAssessment string        `json:"overall_assessment"`
}

// FeedbackResponse is the author's verdict on one feedback item.
type FeedbackResponse struct {
	FeedbackID  string `json:"feedback_id"`
	Verdict     string `json:"verdict"` // agree / disagree / partial
	Reasoning   string `json:"reasoning"`
	ActionTaken string `json:"action_taken"`
}

// ConsensusSelfAssessment is the author's own judgment of whether all
// feedback has been settled.
type ConsensusSelfAssessment struct {
	Reached                  bool     `json:"reached"`
	OutstandingDisagreements []string `json:"outstanding_disagreements"`
	Confidence               float64  `json:"confidence"`
	Summary                  string   `json:"summary"`
}

// ResponsePayload is the author's output for one round: verdicts, a full
// replacement document, and a consensus self-assessment.
type ResponsePayload struct {
	Responses       []FeedbackResponse      `json:"responses"`
	UpdatedDocument string                  `json:"updated_document"`
	Consensus       ConsensusSelfAssessment `json:"consensus"`
}

// Resolution is the reviewer's re-evaluation of one original feedback item.
type Resolution struct {
	FeedbackID string `json:"feedback_id"`
	Status     string `json:"status"` // resolved / inadequate / validly_disputed / new_issues
	Comment    string `json:"comment"`
}

// ConsensusPayload is the reviewer's final check, present only for rounds
// where the author claimed consensus.
type ConsensusPayload struct {
	Verdict     string       `json:"verdict"` // approve / reject
	Resolutions []Resolution `json:"resolutions"`
	NewIssues   []Issue      `json:"new_issues"`
	Summary     string       `json:"summary"`
}

// PhaseTiming records one phase's duration and estimated token usage.
type PhaseTiming struct {
	Phase        string `json:"phase"`
	DurationMS   int64  `json:"duration_ms"`
	PromptTokens int64  `json:"prompt_tokens"` // estimated
	OutputTokens int64  `json:"output_tokens"` // estimated
}

// RoundTiming is the per-round timing/token artifact.
type RoundTiming struct {
	Round  int           `json:"round"`
	Phases []PhaseTiming `json:"phases"`
}

// Statistics is the aggregate resolution state, always recomputed from
// persisted artifacts rather than incrementally trusted.
type Statistics struct {
	TotalIssuesRaised        int  `json:"total_issues_raised"`
	TotalOpportunitiesRaised int  `json:"total_opportunities_raised"`
	IssuesResolved           int  `json:"issues_resolved"`
	IssuesDisputed           int  `json:"issues_disputed"`
	CriticalUnresolved       int  `json:"critical_unresolved"`
	MajorUnresolved          int  `json:"major_unresolved"`
	OpportunitiesAccepted    int  `json:"opportunities_accepted"`
	OpportunitiesRejected    int  `json:"opportunities_rejected"`
	ConsensusReached         bool `json:"consensus_reached"`
}

// Manifest is the mutable per-session record, persisted after every phase
// transition.
type Manifest struct {
	SessionID    string     `json:"session_id"`
	InputFile    string     `json:"input_file"`
	OutputFile   string     `json:"output_file"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	Status       string     `json:"status"`
	CurrentRound int        `json:"current_round"`
	CurrentPhase string     `json:"current_phase"`
	MaxRounds    int        `json:"max_rounds"`
	Statistics   Statistics `json:"statistics"`
}

// Summary is the final artifact written at session end.
type Summary struct {
	SessionID   string     `json:"session_id"`
	Status      string     `json:"status"`
	Rounds      int        `json:"rounds"`
	Statistics  Statistics `json:"statistics"`
	CompletedAt time.Time  `json:"completed_at"`
}
