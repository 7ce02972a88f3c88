// Package stats recomputes session statistics from persisted round
// artifacts. The artifacts are the source of truth; nothing here trusts
// a previously stored total, so the result is always consistent with
// whatever is actually in the store, including after resumes or manual
// edits.
package stats

import (
	"fmt"
	"strings"

	"github.com/mfelix/quibble/internal/session"
	"github.com/mfelix/quibble/internal/store"
)

// Recompute replays rounds 1..n and rebuilds resolution statistics from
// scratch. Rounds with no persisted review payload (an interrupted round)
// contribute nothing.
func Recompute(s store.Store, n int) (session.Statistics, error) {
	var st session.Statistics

	for round := 1; round <= n; round++ {
		review, ok, err := session.ReadReview(s, round)
		if err != nil {
			return session.Statistics{}, fmt.Errorf("round %d review: %w", round, err)
		}
		if !ok {
			continue
		}

		st.TotalIssuesRaised += len(review.Issues)
		st.TotalOpportunitiesRaised += len(review.Opportunities)

		severity := severityIndex(review)

		response, haveResponse, err := session.ReadResponse(s, round)
		if err != nil {
			return session.Statistics{}, fmt.Errorf("round %d response: %w", round, err)
		}
		consensus, haveConsensus, err := session.ReadConsensus(s, round)
		if err != nil {
			return session.Statistics{}, fmt.Errorf("round %d consensus: %w", round, err)
		}

		if haveResponse {
			if response.Consensus.Reached {
				st.ConsensusReached = true
			}
			countOpportunities(&st, response)
			if !haveConsensus {
				// Early round with no re-evaluation: the author's own
				// agreement is the best signal available.
				for _, r := range response.Responses {
					if isIssueID(r.FeedbackID) && r.Verdict == session.VerdictAgree {
						st.IssuesResolved++
					}
				}
			}
		}

		if haveConsensus {
			// The consensus check re-evaluates every original item and
			// supersedes the author's raw verdicts.
			for _, r := range consensus.Resolutions {
				if !isIssueID(r.FeedbackID) {
					continue
				}
				switch r.Status {
				case session.ResolutionResolved, session.ResolutionValidlyDisputed:
					st.IssuesResolved++
				case session.ResolutionInadequate:
					st.IssuesDisputed++
					switch severity[r.FeedbackID] {
					case session.SeverityCritical:
						st.CriticalUnresolved++
					case session.SeverityMajor:
						st.MajorUnresolved++
					}
				}
			}
			st.TotalIssuesRaised += len(consensus.NewIssues)
			for _, issue := range consensus.NewIssues {
				switch issue.Severity {
				case session.SeverityCritical:
					st.CriticalUnresolved++
				case session.SeverityMajor:
					st.MajorUnresolved++
				}
			}
		}
	}

	return st, nil
}

// severityIndex maps feedback ids to issue severities for cross-
// referencing consensus resolutions.
func severityIndex(review *session.ReviewPayload) map[string]string {
	idx := make(map[string]string, len(review.Issues))
	for _, issue := range review.Issues {
		idx[issue.ID] = issue.Severity
	}
	return idx
}

func countOpportunities(st *session.Statistics, response *session.ResponsePayload) {
	for _, r := range response.Responses {
		if !strings.HasPrefix(r.FeedbackID, session.OppIDPrefix) {
			continue
		}
		switch r.Verdict {
		case session.VerdictAgree:
			st.OpportunitiesAccepted++
		case session.VerdictDisagree:
			st.OpportunitiesRejected++
		}
	}
}

func isIssueID(id string) bool {
	return strings.HasPrefix(id, session.IssueIDPrefix)
}
