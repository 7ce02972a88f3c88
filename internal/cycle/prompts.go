package cycle

import (
	"encoding/json"
	"fmt"

	"github.com/mfelix/quibble/internal/extract"
	"github.com/mfelix/quibble/internal/session"
)

const payloadInstructions = "Respond with a single JSON object wrapped between the markers %s and %s. No other JSON in the reply."

func reviewPrompt(doc, contextText string) string {
	p := fmt.Sprintf(`You are reviewing a document. Identify concrete issues (severity: critical, major, or minor) and improvement opportunities (impact: high, medium, or low). Use ids "issue-1", "issue-2", ... and "opp-1", "opp-2", ...

`+payloadInstructions+`
Fields: "issues" (array of {id, severity, section, description, suggestion}), "opportunities" (array of {id, impact, section, description, suggestion}), "overall_assessment" (string).

Document:
---
%s
---
`, extract.StartSentinel, extract.EndSentinel, doc)
	if contextText != "" {
		p += "\n" + contextText
	}
	return p
}

func responsePrompt(doc string, review *session.ReviewPayload) string {
	feedback, _ := json.MarshalIndent(review, "", "  ")
	return fmt.Sprintf(`You are the author of a document under review. For each feedback item give a verdict ("agree", "disagree", or "partial") with reasoning and the action taken, then produce the full revised document.

`+payloadInstructions+`
Fields: "responses" (array of {feedback_id, verdict, reasoning, action_taken}), "updated_document" (string, the complete revised text), "consensus" ({reached, outstanding_disagreements, confidence, summary}). Set "reached" true only if every item is settled.

Current document:
---
%s
---

Reviewer feedback:
%s
`, extract.StartSentinel, extract.EndSentinel, doc, feedback)
}

func consensusPrompt(originalDoc string, review *session.ReviewPayload, response *session.ResponsePayload) string {
	feedback, _ := json.MarshalIndent(review, "", "  ")
	responses, _ := json.MarshalIndent(response.Responses, "", "  ")
	return fmt.Sprintf(`You previously reviewed a document; the author has responded and revised it, claiming all feedback is settled. Re-check each of your original feedback items and give a final verdict.

`+payloadInstructions+`
Fields: "verdict" ("approve" or "reject"), "resolutions" (array of {feedback_id, status, comment} with status one of "resolved", "inadequate", "validly_disputed", "new_issues"), "new_issues" (array of {id, severity, section, description, suggestion}), "summary" (string).

Original document:
---
%s
---

Your original feedback:
%s

Author responses:
%s

Revised document:
---
%s
---
`, extract.StartSentinel, extract.EndSentinel, originalDoc, feedback, responses, response.UpdatedDocument)
}
