package session

import "fmt"

// Artifact layout under the session store root. Resume-point discovery
// depends on the creation order review -> response -> (consensus) ->
// document within a round, so these names are load-bearing.
const (
	ManifestPath     = "manifest.json"
	FinalDocPath     = "final/document.md"
	FinalSummaryPath = "final/summary.json"
	roundsDir        = "rounds"
)

func RoundDir(round int) string {
	return fmt.Sprintf("%s/round-%d", roundsDir, round)
}

func ReviewPath(round int) string    { return RoundDir(round) + "/review.json" }
func ResponsePath(round int) string  { return RoundDir(round) + "/response.json" }
func ConsensusPath(round int) string { return RoundDir(round) + "/consensus.json" }
func DocumentPath(round int) string  { return RoundDir(round) + "/document.md" }
func TimingPath(round int) string    { return RoundDir(round) + "/timing.json" }
