package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfelix/quibble/internal/session"
)

func showCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session's outcome and statistics",
		Long: `Show the final state of a review session.

Statistics are recomputed from the session's persisted round artifacts,
not read from cached totals.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sessionStore(args[0])
			if err != nil {
				return err
			}
			mgr, err := loadManager(s)
			if err != nil {
				return err
			}
			m := mgr.Manifest()

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(m)
			}

			fmt.Printf("Session:   %s\n", m.SessionID)
			fmt.Printf("Input:     %s\n", m.InputFile)
			fmt.Printf("Output:    %s\n", m.OutputFile)
			fmt.Printf("Status:    %s\n", m.Status)
			fmt.Printf("Rounds:    %d (max %d)\n", m.CurrentRound, m.MaxRounds)
			fmt.Printf("Started:   %s\n", m.StartedAt.Local().Format(time.DateTime))
			if m.CompletedAt != nil {
				fmt.Printf("Completed: %s\n", m.CompletedAt.Local().Format(time.DateTime))
			}

			st := m.Statistics
			fmt.Println()
			fmt.Printf("Issues raised:          %d\n", st.TotalIssuesRaised)
			fmt.Printf("Issues resolved:        %d\n", st.IssuesResolved)
			fmt.Printf("Issues disputed:        %d\n", st.IssuesDisputed)
			fmt.Printf("Critical unresolved:    %d\n", st.CriticalUnresolved)
			fmt.Printf("Major unresolved:       %d\n", st.MajorUnresolved)
			fmt.Printf("Opportunities raised:   %d\n", st.TotalOpportunitiesRaised)
			fmt.Printf("Opportunities accepted: %d\n", st.OpportunitiesAccepted)
			fmt.Printf("Consensus reached:      %v\n", st.ConsensusReached)

			if sum, ok, err := session.ReadSummary(s); err == nil && ok {
				fmt.Println()
				fmt.Printf("Finalized %s after %d round(s) as %s\n",
					sum.CompletedAt.Local().Format(time.DateTime), sum.Rounds, sum.Status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}
