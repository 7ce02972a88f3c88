package cycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mfelix/quibble/internal/agent"
	"github.com/mfelix/quibble/internal/event"
	"github.com/mfelix/quibble/internal/session"
	"github.com/mfelix/quibble/internal/store"
)

// collectSink records every emitted event for assertions.
type collectSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *collectSink) Emit(e event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collectSink) byType(t string) []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []event.Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func reviewJSON(issues ...string) string {
	list := ""
	for i, desc := range issues {
		if i > 0 {
			list += ","
		}
		list += fmt.Sprintf(`{"id":"issue-%d","severity":"minor","section":"s","description":"%s"}`, i+1, desc)
	}
	return fmt.Sprintf(`{"issues":[%s],"opportunities":[],"overall_assessment":"assessed"}`, list)
}

func reviewJSONSeverity(severity string) string {
	return fmt.Sprintf(`{"issues":[{"id":"issue-1","severity":"%s","section":"s","description":"problem"}],"opportunities":[],"overall_assessment":"assessed"}`, severity)
}

func responseJSON(reached bool, updatedDoc string) string {
	return fmt.Sprintf(`{
		"responses":[{"feedback_id":"issue-1","verdict":"agree","reasoning":"fair","action_taken":"fixed"}],
		"updated_document":%q,
		"consensus":{"reached":%v,"outstanding_disagreements":[],"confidence":0.8,"summary":"s"}
	}`, updatedDoc, reached)
}

func consensusJSON(verdict, status string) string {
	return fmt.Sprintf(`{
		"verdict":%q,
		"resolutions":[{"feedback_id":"issue-1","status":%q,"comment":"c"}],
		"new_issues":[],
		"summary":"done"
	}`, verdict, status)
}

type fixture struct {
	store    *store.MemStore
	manager  *session.Manager
	reviewer *agent.TestAgent
	author   *agent.TestAgent
	sink     *collectSink
	outFile  string
}

func newFixture(t *testing.T, maxRounds int, reviewerOut, authorOut []string) *fixture {
	t.Helper()
	s := store.NewMemStore()
	outFile := filepath.Join(t.TempDir(), "out.md")
	mgr, err := session.New(s, "test-20250101-000000-abc123", "/in/doc.md", outFile, maxRounds)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return &fixture{
		store:    s,
		manager:  mgr,
		reviewer: agent.NewTestAgent("codex", reviewerOut...),
		author:   agent.NewTestAgent("claude", authorOut...),
		sink:     &collectSink{},
		outFile:  outFile,
	}
}

func (f *fixture) orchestrator() *Orchestrator {
	return New(Options{
		Store:         f.store,
		Manager:       f.manager,
		Reviewer:      f.reviewer,
		Author:        f.author,
		InputDocument: "the original document",
		Sink:          f.sink,
		Retry:         agent.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
}

func TestSingleRoundApproval(t *testing.T) {
	f := newFixture(t, 5,
		[]string{reviewJSON("unclear"), consensusJSON("approve", "resolved")},
		[]string{responseJSON(true, "the final document")},
	)

	status, code, err := f.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != session.StatusCompleted || code != 0 {
		t.Errorf("status=%s code=%d, want completed/0", status, code)
	}

	// final document equals the response's updated_document, in both the
	// store and the user output file
	finalDoc, ok, _ := f.store.Read(session.FinalDocPath)
	if !ok || string(finalDoc) != "the final document" {
		t.Errorf("store final doc = %q ok=%v", finalDoc, ok)
	}
	written, err := os.ReadFile(f.outFile)
	if err != nil || string(written) != "the final document" {
		t.Errorf("output file = %q err=%v", written, err)
	}

	m := f.manager.Manifest()
	if m.Status != session.StatusCompleted || m.CompletedAt == nil {
		t.Errorf("manifest = %+v", m)
	}
	if m.Statistics.IssuesResolved != 1 {
		t.Errorf("issues_resolved = %d", m.Statistics.IssuesResolved)
	}

	sum, ok, _ := session.ReadSummary(f.store)
	if !ok || sum.Status != session.StatusCompleted || sum.Rounds != 1 {
		t.Errorf("summary = %+v ok=%v", sum, ok)
	}

	if got := f.sink.byType(event.TypeCompletion); len(got) != 1 || got[0].ExitCode != 0 {
		t.Errorf("completion events = %+v", got)
	}
}

func TestConsensusRejectContinues(t *testing.T) {
	f := newFixture(t, 5,
		[]string{
			reviewJSON("first pass"),
			consensusJSON("reject", "inadequate"),
			reviewJSON("second pass"),
			consensusJSON("approve", "resolved"),
		},
		[]string{
			responseJSON(true, "doc v2"),
			responseJSON(true, "doc v3"),
		},
	)

	status, code, err := f.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != session.StatusCompleted || code != 0 {
		t.Errorf("status=%s code=%d", status, code)
	}
	// a reject is not an error, just another round
	if f.author.Calls() != 2 {
		t.Errorf("author invoked %d times, want 2", f.author.Calls())
	}
	if f.manager.Manifest().CurrentRound != 2 {
		t.Errorf("current_round = %d", f.manager.Manifest().CurrentRound)
	}
	written, _ := os.ReadFile(f.outFile)
	if string(written) != "doc v3" {
		t.Errorf("final doc = %q", written)
	}
}

func TestConsensusSkippedWhenNotClaimed(t *testing.T) {
	f := newFixture(t, 2,
		[]string{reviewJSON("round one"), reviewJSON("round two differs")},
		[]string{responseJSON(false, "doc v2"), responseJSON(false, "doc v3")},
	)

	status, code, err := f.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// author never claimed consensus: reviewer runs exactly once per
	// round, no consensus-check invocations
	if f.reviewer.Calls() != 2 {
		t.Errorf("reviewer invoked %d times, want 2", f.reviewer.Calls())
	}
	if status != session.StatusMaxRounds || code != 0 {
		t.Errorf("status=%s code=%d, want max_rounds_reached/0", status, code)
	}
	if got := f.sink.byType(event.TypeConsensus); len(got) != 0 {
		t.Errorf("unexpected consensus events: %+v", got)
	}
}

func TestStalemateTermination(t *testing.T) {
	same := reviewJSON("identical complaint")
	f := newFixture(t, 9,
		[]string{same, same},
		[]string{responseJSON(false, "doc v2")},
	)

	status, code, err := f.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != session.StatusMaxRounds || code != 0 {
		t.Errorf("status=%s code=%d", status, code)
	}
	// the author must never be invoked for the stalemated round
	if f.author.Calls() != 1 {
		t.Errorf("author invoked %d times, want 1", f.author.Calls())
	}
	if f.manager.Manifest().CurrentRound != 2 {
		t.Errorf("terminated at round %d, want 2", f.manager.Manifest().CurrentRound)
	}
}

func TestFingerprintIgnoresOrdering(t *testing.T) {
	a := &session.ReviewPayload{
		Issues: []session.Issue{
			{ID: "issue-1", Severity: "minor", Description: "alpha"},
			{ID: "issue-2", Severity: "major", Description: "beta"},
		},
	}
	b := &session.ReviewPayload{
		Issues: []session.Issue{
			{ID: "issue-2", Severity: "major", Description: "beta"},
			{ID: "issue-1", Severity: "minor", Description: "alpha"},
		},
	}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("reordering changed the fingerprint")
	}

	c := &session.ReviewPayload{
		Issues: []session.Issue{
			{ID: "issue-1", Severity: "minor", Description: "alpha CHANGED"},
			{ID: "issue-2", Severity: "major", Description: "beta"},
		},
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("changed description kept the fingerprint")
	}
}

func TestMaxRoundsUnsafeExitCode(t *testing.T) {
	f := newFixture(t, 1,
		[]string{reviewJSONSeverity("critical"), consensusJSON("reject", "inadequate")},
		[]string{responseJSON(true, "doc v2")},
	)

	status, code, err := f.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != session.StatusMaxRoundsUnsafe {
		t.Errorf("status = %s, want max_rounds_reached_unsafe", status)
	}
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestMaxRoundsWarningExitCode(t *testing.T) {
	f := newFixture(t, 1,
		[]string{reviewJSONSeverity("major"), consensusJSON("reject", "inadequate")},
		[]string{responseJSON(true, "doc v2")},
	)

	status, code, err := f.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != session.StatusMaxRoundsWarning || code != 1 {
		t.Errorf("status=%s code=%d, want warning/1", status, code)
	}
}

func TestMalformedReviewFailsHard(t *testing.T) {
	f := newFixture(t, 5,
		[]string{"I refuse to produce JSON."},
		nil,
	)

	status, code, err := f.orchestrator().Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if status != session.StatusFailed || code != 2 {
		t.Errorf("status=%s code=%d", status, code)
	}
	// reviews are read-only judgments: no repair, author never invoked
	if f.author.Calls() != 0 {
		t.Errorf("author invoked %d times after malformed review", f.author.Calls())
	}

	errs := f.sink.byType(event.TypeError)
	if len(errs) != 1 {
		t.Fatalf("error events = %+v", errs)
	}
	if errs[0].Code != CodeMalformed || errs[0].Resumable {
		t.Errorf("error event = %+v", errs[0])
	}
	if errs[0].Round != 1 || errs[0].Phase != session.PhaseCodexReview {
		t.Errorf("error location = round %d phase %s", errs[0].Round, errs[0].Phase)
	}
}

func TestResumeSkipsCompletedPhases(t *testing.T) {
	f := newFixture(t, 5,
		[]string{consensusJSON("approve", "resolved")}, // only the consensus call remains
		[]string{responseJSON(true, "resumed final")},
	)

	// Round 1's review already persisted by a previous process.
	prior := &session.ReviewPayload{
		Issues:            []session.Issue{{ID: "issue-1", Severity: "minor", Section: "s", Description: "carried over"}},
		OverallAssessment: "assessed",
	}
	if err := session.WriteReview(f.store, 1, prior); err != nil {
		t.Fatalf("WriteReview: %v", err)
	}

	status, code, err := f.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != session.StatusCompleted || code != 0 {
		t.Errorf("status=%s code=%d", status, code)
	}
	// the reviewer ran only for the consensus check, not a fresh review
	if f.reviewer.Calls() != 1 {
		t.Errorf("reviewer invoked %d times, want 1", f.reviewer.Calls())
	}
	written, _ := os.ReadFile(f.outFile)
	if string(written) != "resumed final" {
		t.Errorf("final doc = %q", written)
	}
}

func TestResumeAfterDocumentSnapshot(t *testing.T) {
	f := newFixture(t, 2,
		[]string{reviewJSON("round two review"), consensusJSON("approve", "resolved")},
		[]string{responseJSON(true, "doc v3")},
	)

	// Round 1 fully durable: review, response, snapshot.
	if err := session.WriteReview(f.store, 1, &session.ReviewPayload{
		Issues: []session.Issue{{ID: "issue-1", Severity: "minor", Description: "old"}},
	}); err != nil {
		t.Fatalf("WriteReview: %v", err)
	}
	if err := session.WriteResponse(f.store, 1, &session.ResponsePayload{
		UpdatedDocument: "doc v2",
	}); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	if err := session.WriteDocument(f.store, 1, "doc v2"); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}

	status, _, err := f.orchestrator().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != session.StatusCompleted {
		t.Errorf("status = %s", status)
	}
	// round 2's review was prompted with round 1's snapshot
	prompts := f.reviewer.Prompts()
	if len(prompts) == 0 || !strings.Contains(prompts[0], "doc v2") {
		t.Errorf("round 2 review prompt missing prior snapshot")
	}
	if f.manager.Manifest().CurrentRound != 2 {
		t.Errorf("current_round = %d", f.manager.Manifest().CurrentRound)
	}
}

func TestRoundArtifactsDurableBeforeAdvance(t *testing.T) {
	f := newFixture(t, 2,
		[]string{reviewJSON("one"), reviewJSON("two")},
		[]string{responseJSON(false, "doc v2"), responseJSON(false, "doc v3")},
	)

	if _, _, err := f.orchestrator().Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for round := 1; round <= 2; round++ {
		for _, p := range []string{
			session.ReviewPath(round),
			session.ResponsePath(round),
			session.DocumentPath(round),
			session.TimingPath(round),
		} {
			if ok, _ := f.store.Exists(p); !ok {
				t.Errorf("missing artifact %s", p)
			}
		}
		// no consensus claimed, so no consensus artifact
		if ok, _ := f.store.Exists(session.ConsensusPath(round)); ok {
			t.Errorf("unexpected consensus artifact for round %d", round)
		}
	}

	timing, ok, err := session.ReadTiming(f.store, 1)
	if err != nil || !ok {
		t.Fatalf("ReadTiming: ok=%v err=%v", ok, err)
	}
	if len(timing.Phases) != 2 {
		t.Errorf("phase timings = %+v", timing.Phases)
	}
}

func TestEventOrdering(t *testing.T) {
	f := newFixture(t, 5,
		[]string{reviewJSON("x"), consensusJSON("approve", "resolved")},
		[]string{responseJSON(true, "final")},
	)

	if _, _, err := f.orchestrator().Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var order []string
	for _, e := range f.sink.events {
		if e.Type == event.TypeAgentChunk {
			continue
		}
		order = append(order, e.Type)
	}
	want := []string{
		event.TypeSessionStart,
		event.TypeRoundStart,
		event.TypeReviewFindings,
		event.TypeResponseSummary,
		event.TypeConsensus,
		event.TypeRoundTiming,
		event.TypeCompletion,
	}
	if len(order) != len(want) {
		t.Fatalf("event order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, order[i], want[i])
		}
	}
	for _, e := range f.sink.events {
		if e.TS.IsZero() {
			t.Errorf("event %s missing timestamp", e.Type)
		}
	}
}

func TestExitCodeMapping(t *testing.T) {
	cases := map[string]int{
		session.StatusCompleted:        0,
		session.StatusMaxRounds:        0,
		session.StatusMaxRoundsWarning: 1,
		session.StatusMaxRoundsUnsafe:  2,
		session.StatusFailed:           2,
	}
	for status, want := range cases {
		if got := ExitCode(status); got != want {
			t.Errorf("ExitCode(%s) = %d, want %d", status, got, want)
		}
	}
}
