package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mfelix/quibble/internal/config"
	"github.com/mfelix/quibble/internal/contextfiles"
	"github.com/mfelix/quibble/internal/session"
)

func resumeCmd() *cobra.Command {
	var (
		jsonOutput    bool
		keepDebugLogs bool
	)

	cmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Continue an interrupted review session",
		Long: `Resume a session from its last durably completed phase.

Completed phases are never re-run: the session picks up at the first
phase whose artifact is missing.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadGlobal()
			if err != nil {
				return err
			}
			if keepDebugLogs {
				cfg.KeepDebugLogs = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			s, err := sessionStore(args[0])
			if err != nil {
				return err
			}
			mgr, err := loadManager(s)
			if err != nil {
				return err
			}
			m := mgr.Manifest()
			if m.Status != session.StatusInProgress {
				return fmt.Errorf("session %s already finished as %s", m.SessionID, m.Status)
			}

			content, err := os.ReadFile(m.InputFile)
			if err != nil {
				return fmt.Errorf("read input %s: %w", m.InputFile, err)
			}
			doc := string(content)
			ctxText := contextfiles.Collect(doc, filepath.Dir(m.InputFile))

			return execute(cmd, cfg, s, mgr, doc, ctxText, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit NDJSON events instead of rendered output")
	cmd.Flags().BoolVar(&keepDebugLogs, "keep-logs", false, "keep raw agent transcripts after a successful session")

	return cmd
}
