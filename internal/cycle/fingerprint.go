package cycle

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/mfelix/quibble/internal/session"
)

// Fingerprint computes a content hash of a review's feedback, normalized
// so that reordering alone never looks like new feedback. Two rounds with
// equal fingerprints mean the reviewer has nothing new to say.
func Fingerprint(review *session.ReviewPayload) string {
	items := make([]string, 0, len(review.Issues)+len(review.Opportunities))
	for _, issue := range review.Issues {
		items = append(items, strings.Join([]string{
			"issue", issue.ID, issue.Severity, issue.Section, issue.Description, issue.Suggestion,
		}, "\x1f"))
	}
	for _, opp := range review.Opportunities {
		items = append(items, strings.Join([]string{
			"opp", opp.ID, opp.Impact, opp.Section, opp.Description, opp.Suggestion,
		}, "\x1f"))
	}
	sort.Strings(items)

	h := sha256.New()
	for _, item := range items {
		h.Write([]byte(item))
		h.Write([]byte{'\x1e'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
