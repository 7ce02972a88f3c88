package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfelix/quibble/internal/config"
)

func listCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List review sessions",
		Long: `List past and in-progress review sessions from the history index.

Examples:
  quibble list             # Most recent sessions
  quibble list --json      # Output as JSON
  quibble list --limit 5   # Show at most 5 sessions`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadGlobal()
			if err != nil {
				return err
			}
			recorder := openRecorder(cfg)
			defer recorder.Close()

			sessions, err := recorder.ListSessions(limit)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(sessions)
			}

			if len(sessions) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tInput\tStatus\tRounds\tResolved\tStarted\n")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d/%d\t%s\n",
					s.ID,
					filepath.Base(s.InputFile),
					s.Status,
					s.Rounds,
					s.IssuesResolved, s.IssuesRaised,
					s.StartedAt.Local().Format(time.DateTime),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}
