// Package cycle drives the review loop: reviewer critiques, author
// revises and defends, reviewer re-checks, repeat until agreement, a
// stalemate, or the round limit. Every phase result is durable before
// the next phase starts, so an interrupted session resumes exactly where
// it stopped.
package cycle

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mfelix/quibble/internal/agent"
	"github.com/mfelix/quibble/internal/event"
	"github.com/mfelix/quibble/internal/history"
	"github.com/mfelix/quibble/internal/session"
	"github.com/mfelix/quibble/internal/stats"
	"github.com/mfelix/quibble/internal/store"
)

// Options configures an Orchestrator.
type Options struct {
	Store         store.Store
	Manager       *session.Manager
	Reviewer      agent.Agent // critiquing collaborator
	Author        agent.Agent // authoring collaborator
	InputDocument string      // full text of the document under review
	ContextText   string      // optional supporting-context bundle
	Sink          event.Sink
	Recorder      history.Recorder
	Retry         agent.RetryConfig
	Debug         *DebugLog
	KeepDebugLogs bool
}

// Orchestrator drives one session to termination. Exactly one instance
// writes a given session's namespace.
type Orchestrator struct {
	store    store.Store
	manager  *session.Manager
	reviewer agent.Agent
	author   agent.Agent
	inputDoc string
	ctxText  string
	sink     event.Sink
	recorder history.Recorder
	retry    agent.RetryConfig
	debug    *DebugLog
	keepLogs bool
}

func New(opts Options) *Orchestrator {
	if opts.Sink == nil {
		opts.Sink = event.Discard
	}
	if opts.Recorder == nil {
		opts.Recorder = history.Nop{}
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = agent.DefaultRetryConfig()
	}
	if opts.Debug == nil {
		opts.Debug = &DebugLog{}
	}
	return &Orchestrator{
		store:    opts.Store,
		manager:  opts.Manager,
		reviewer: opts.Reviewer,
		author:   opts.Author,
		inputDoc: opts.InputDocument,
		ctxText:  opts.ContextText,
		sink:     opts.Sink,
		recorder: opts.Recorder,
		retry:    opts.Retry,
		debug:    opts.Debug,
		keepLogs: opts.KeepDebugLogs,
	}
}

// ExitCode maps a terminal status to the process exit code.
func ExitCode(status string) int {
	switch status {
	case session.StatusCompleted, session.StatusMaxRounds:
		return 0
	case session.StatusMaxRoundsWarning:
		return 1
	default:
		return 2
	}
}

// round outcomes
type outcome int

const (
	outcomeContinue outcome = iota
	outcomeApproved
	outcomeStalemate
)

// Run drives the session to termination and returns the final status and
// exit code. The returned error is non-nil only for hard failures.
func (o *Orchestrator) Run(ctx context.Context) (string, int, error) {
	m := o.manager.Manifest()
	o.emit(event.Event{Type: event.TypeSessionStart, SessionID: m.SessionID})
	if err := o.recorder.SessionStarted(m); err != nil {
		log.Printf("[cycle] history index: %v", err)
	}

	round, _, err := o.manager.ResumePoint()
	if err != nil {
		return o.fail(storageErr(m.CurrentRound, m.CurrentPhase, err))
	}

	for {
		if round > m.MaxRounds {
			doc, ok, err := session.ReadDocument(o.store, round-1)
			if err != nil || !ok {
				return o.fail(storageErr(round-1, session.PhasePending,
					fmt.Errorf("load round %d document: ok=%v err=%w", round-1, ok, err)))
			}
			return o.finalizeGraded(round-1, doc)
		}

		if err := o.manager.StartRound(round); err != nil {
			return o.fail(storageErr(round, session.PhasePending, err))
		}
		// Artifacts may already exist for this round; skip completed work.
		_, phase, err := o.manager.ResumePoint()
		if err != nil {
			return o.fail(storageErr(round, session.PhasePending, err))
		}

		o.emit(event.Event{Type: event.TypeRoundStart, SessionID: m.SessionID, Round: round, Phase: phase})

		result, doc, perr := o.runRound(ctx, round, phase)
		if perr != nil {
			return o.fail(perr)
		}

		switch result {
		case outcomeApproved:
			return o.finalize(session.StatusCompleted, round, doc)
		case outcomeStalemate:
			// A stalemate ends the session the same way the round limit
			// does: the terminal status is graded by whatever consensus
			// checks left unresolved, not a distinct stalemate status.
			return o.finalizeGraded(round, doc)
		default:
			round++
		}
	}
}

func phaseRank(phase string) int {
	switch phase {
	case session.PhaseClaudeResponse:
		return 1
	case session.PhaseConsensusCheck:
		return 2
	default: // pending / codex_review
		return 0
	}
}

// runRound executes (or resumes) one round from startPhase. On success
// it returns the round outcome and the document as it stands after the
// round.
func (o *Orchestrator) runRound(ctx context.Context, round int, startPhase string) (outcome, string, *PhaseError) {
	m := o.manager.Manifest()
	timing := session.RoundTiming{Round: round}
	rank := phaseRank(startPhase)

	doc, sErr := o.currentDocument(round)
	if sErr != nil {
		return 0, "", storageErr(round, startPhase, sErr)
	}

	// Review phase.
	var review *session.ReviewPayload
	ranReview := false
	if rank <= 0 {
		if err := o.manager.SetPhase(session.PhaseCodexReview); err != nil {
			return 0, "", storageErr(round, session.PhaseCodexReview, err)
		}
		raw, dur, err := o.invoke(ctx, o.reviewer, round, session.PhaseCodexReview, reviewPrompt(doc, o.ctxText))
		if err != nil {
			return 0, "", phaseErr(round, session.PhaseCodexReview, err)
		}
		review, err = session.ParseReview(raw)
		if err != nil {
			return 0, "", phaseErr(round, session.PhaseCodexReview, err)
		}
		if err := session.WriteReview(o.store, round, review); err != nil {
			return 0, "", storageErr(round, session.PhaseCodexReview, err)
		}
		timing.Phases = append(timing.Phases, phaseTiming(session.PhaseCodexReview, dur, reviewPrompt(doc, o.ctxText), raw))
		ranReview = true
	} else {
		var ok bool
		var err error
		review, ok, err = session.ReadReview(o.store, round)
		if err != nil || !ok {
			return 0, "", storageErr(round, startPhase, fmt.Errorf("load round %d review: ok=%v err=%w", round, ok, err))
		}
	}
	o.emit(event.Event{
		Type: event.TypeReviewFindings, SessionID: m.SessionID, Round: round,
		Agent: o.reviewer.Name(), Issues: len(review.Issues), Opportunities: len(review.Opportunities),
	})

	// Stalemate check: identical normalized feedback two rounds running
	// means further rounds cannot progress. Never invoke the author.
	if ranReview && round > 1 {
		prev, ok, err := session.ReadReview(o.store, round-1)
		if err != nil {
			return 0, "", storageErr(round, session.PhaseCodexReview, err)
		}
		if ok && Fingerprint(prev) == Fingerprint(review) {
			log.Printf("[cycle] round %d: feedback identical to round %d, stalemate", round, round-1)
			return outcomeStalemate, doc, nil
		}
	}

	// Response phase.
	var response *session.ResponsePayload
	if rank <= 1 {
		if err := o.manager.SetPhase(session.PhaseClaudeResponse); err != nil {
			return 0, "", storageErr(round, session.PhaseClaudeResponse, err)
		}
		prompt := responsePrompt(doc, review)
		raw, dur, err := o.invoke(ctx, o.author, round, session.PhaseClaudeResponse, prompt)
		if err != nil {
			return 0, "", phaseErr(round, session.PhaseClaudeResponse, err)
		}
		var repaired bool
		response, repaired, err = session.ParseResponse(raw, doc)
		if err != nil {
			return 0, "", phaseErr(round, session.PhaseClaudeResponse, err)
		}
		if repaired {
			log.Printf("[cycle] round %d: response payload repaired", round)
		}
		if err := session.WriteResponse(o.store, round, response); err != nil {
			return 0, "", storageErr(round, session.PhaseClaudeResponse, err)
		}
		timing.Phases = append(timing.Phases, phaseTiming(session.PhaseClaudeResponse, dur, prompt, raw))
	} else {
		var ok bool
		var err error
		response, ok, err = session.ReadResponse(o.store, round)
		if err != nil || !ok {
			return 0, "", storageErr(round, startPhase, fmt.Errorf("load round %d response: ok=%v err=%w", round, ok, err))
		}
	}

	agreed, disagreed, partial := tallyVerdicts(response)
	o.emit(event.Event{
		Type: event.TypeResponseSummary, SessionID: m.SessionID, Round: round,
		Agent: o.author.Name(), Agreed: agreed, Disagreed: disagreed, Partial: partial,
		Claimed: response.Consensus.Reached,
	})

	// The author's revision becomes the current document, full
	// replacement.
	newDoc := response.UpdatedDocument

	// Consensus-check phase, only when the author claims agreement.
	var consensus *session.ConsensusPayload
	if response.Consensus.Reached {
		existing, ok, err := session.ReadConsensus(o.store, round)
		if err != nil {
			return 0, "", storageErr(round, session.PhaseConsensusCheck, err)
		}
		if ok {
			consensus = existing
		} else {
			if err := o.manager.SetPhase(session.PhaseConsensusCheck); err != nil {
				return 0, "", storageErr(round, session.PhaseConsensusCheck, err)
			}
			prompt := consensusPrompt(doc, review, response)
			raw, dur, err := o.invoke(ctx, o.reviewer, round, session.PhaseConsensusCheck, prompt)
			if err != nil {
				return 0, "", phaseErr(round, session.PhaseConsensusCheck, err)
			}
			consensus, err = session.ParseConsensus(raw)
			if err != nil {
				return 0, "", phaseErr(round, session.PhaseConsensusCheck, err)
			}
			if err := session.WriteConsensus(o.store, round, consensus); err != nil {
				return 0, "", storageErr(round, session.PhaseConsensusCheck, err)
			}
			timing.Phases = append(timing.Phases, phaseTiming(session.PhaseConsensusCheck, dur, prompt, raw))
		}
		o.emit(event.Event{
			Type: event.TypeConsensus, SessionID: m.SessionID, Round: round,
			Agent: o.reviewer.Name(), Verdict: consensus.Verdict,
		})
	}

	// The document snapshot is the round's commit point: once it exists,
	// resume discovery moves past this round.
	if err := session.WriteDocument(o.store, round, newDoc); err != nil {
		return 0, "", storageErr(round, session.PhaseComplete, err)
	}
	if err := session.WriteTiming(o.store, round, &timing); err != nil {
		return 0, "", storageErr(round, session.PhaseComplete, err)
	}

	var total int64
	for _, p := range timing.Phases {
		total += p.DurationMS
	}
	o.emit(event.Event{Type: event.TypeRoundTiming, SessionID: m.SessionID, Round: round, DurationMS: total})

	verdict := ""
	if consensus != nil {
		verdict = consensus.Verdict
	}
	if err := o.recorder.RoundFinished(history.RoundRecord{
		SessionID: m.SessionID, Round: round,
		Issues: len(review.Issues), Opportunities: len(review.Opportunities),
		ConsensusClaimed: response.Consensus.Reached, Verdict: verdict, DurationMS: total,
	}); err != nil {
		log.Printf("[cycle] history index: %v", err)
	}

	if consensus != nil && consensus.Verdict == session.ConsensusApprove {
		return outcomeApproved, newDoc, nil
	}
	return outcomeContinue, newDoc, nil
}

// currentDocument returns the text under review entering the given
// round: the raw input for round 1, otherwise the previous round's
// snapshot.
func (o *Orchestrator) currentDocument(round int) (string, error) {
	if round <= 1 {
		return o.inputDoc, nil
	}
	doc, ok, err := session.ReadDocument(o.store, round-1)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("round %d document snapshot missing", round-1)
	}
	return doc, nil
}

// invoke runs an agent with retry, streaming chunks to the event sink.
func (o *Orchestrator) invoke(ctx context.Context, a agent.Agent, round int, phase, prompt string) (string, time.Duration, error) {
	m := o.manager.Manifest()
	cw := &chunkWriter{sink: o.sink, sessionID: m.SessionID, agent: a.Name(), round: round, phase: phase}
	start := time.Now()
	out, err := agent.Retry(ctx, o.retry, func(ctx context.Context) (string, error) {
		return a.Run(ctx, prompt, cw)
	})
	dur := time.Since(start)
	if out != "" {
		o.debug.Write(round, phase, out)
	}
	return out, dur, err
}

// finalizeGraded ends a bounded session, grading the terminal status by
// what remains unresolved: any critical left open is unsafe, any major a
// warning.
func (o *Orchestrator) finalizeGraded(lastRound int, finalDoc string) (string, int, error) {
	st, err := stats.Recompute(o.store, lastRound)
	if err != nil {
		return o.fail(storageErr(lastRound, session.PhaseComplete, err))
	}
	status := session.StatusMaxRounds
	switch {
	case st.CriticalUnresolved > 0:
		status = session.StatusMaxRoundsUnsafe
	case st.MajorUnresolved > 0:
		status = session.StatusMaxRoundsWarning
	}
	return o.finalizeWith(status, lastRound, finalDoc, st)
}

func (o *Orchestrator) finalize(status string, lastRound int, finalDoc string) (string, int, error) {
	st, err := stats.Recompute(o.store, lastRound)
	if err != nil {
		return o.fail(storageErr(lastRound, session.PhaseComplete, err))
	}
	return o.finalizeWith(status, lastRound, finalDoc, st)
}

// finalizeWith is the single termination path: final document to the
// store and the user's output file, manifest marked complete, summary
// written, completion event emitted.
func (o *Orchestrator) finalizeWith(status string, lastRound int, finalDoc string, st session.Statistics) (string, int, error) {
	m := o.manager.Manifest()

	if err := o.manager.Complete(status, st); err != nil {
		return o.fail(storageErr(lastRound, session.PhaseComplete, err))
	}
	sum := &session.Summary{
		SessionID:   m.SessionID,
		Status:      status,
		Rounds:      lastRound,
		Statistics:  st,
		CompletedAt: time.Now().UTC(),
	}
	if err := session.WriteFinal(o.store, finalDoc, sum); err != nil {
		return o.fail(storageErr(lastRound, session.PhaseComplete, err))
	}
	if m.OutputFile != "" {
		if err := os.WriteFile(m.OutputFile, []byte(finalDoc), 0o644); err != nil {
			return o.fail(storageErr(lastRound, session.PhaseComplete,
				fmt.Errorf("write output file: %w", err)))
		}
	}

	if err := o.recorder.SessionFinished(o.manager.Manifest()); err != nil {
		log.Printf("[cycle] history index: %v", err)
	}

	code := ExitCode(status)
	o.emit(event.Event{
		Type: event.TypeCompletion, SessionID: m.SessionID, Round: lastRound,
		Status: status, ExitCode: code, Statistics: &st,
	})

	if status != session.StatusFailed && !o.keepLogs {
		o.debug.Cleanup()
	}
	return status, code, nil
}

// fail is the failure termination path: error event, manifest marked
// failed (best-effort; the store may be the thing that broke), exit 2.
func (o *Orchestrator) fail(perr *PhaseError) (string, int, error) {
	m := o.manager.Manifest()
	o.emit(event.Event{
		Type: event.TypeError, SessionID: m.SessionID,
		Round: perr.Round, Phase: perr.Phase,
		Code: perr.Code, Message: perr.Err.Error(), Resumable: perr.Resumable,
	})

	st, err := stats.Recompute(o.store, m.CurrentRound)
	if err != nil {
		st = m.Statistics
	}
	if err := o.manager.Complete(session.StatusFailed, st); err != nil {
		log.Printf("[cycle] mark failed: %v", err)
	}
	if err := o.recorder.SessionFinished(o.manager.Manifest()); err != nil {
		log.Printf("[cycle] history index: %v", err)
	}
	o.emit(event.Event{
		Type: event.TypeCompletion, SessionID: m.SessionID,
		Status: session.StatusFailed, ExitCode: 2, Statistics: &st,
	})
	return session.StatusFailed, 2, perr
}

func (o *Orchestrator) emit(e event.Event) {
	o.sink.Emit(event.Stamp(e))
}

func tallyVerdicts(response *session.ResponsePayload) (agreed, disagreed, partial int) {
	for _, r := range response.Responses {
		switch r.Verdict {
		case session.VerdictAgree:
			agreed++
		case session.VerdictDisagree:
			disagreed++
		default:
			partial++
		}
	}
	return
}

// estimateTokens approximates token counts from byte length; the CLIs
// expose no reliable usage counters in the modes used here.
func estimateTokens(s string) int64 {
	return int64(len(s) / 4)
}

func phaseTiming(phase string, dur time.Duration, prompt, output string) session.PhaseTiming {
	return session.PhaseTiming{
		Phase:        phase,
		DurationMS:   dur.Milliseconds(),
		PromptTokens: estimateTokens(prompt),
		OutputTokens: estimateTokens(output),
	}
}

// chunkWriter forwards streamed agent output to the event sink.
type chunkWriter struct {
	sink      event.Sink
	sessionID string
	agent     string
	round     int
	phase     string
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	w.sink.Emit(event.Stamp(event.Event{
		Type: event.TypeAgentChunk, SessionID: w.sessionID,
		Agent: w.agent, Round: w.round, Phase: w.phase, Chunk: string(p),
	}))
	return len(p), nil
}
