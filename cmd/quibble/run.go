package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfelix/quibble/internal/config"
	"github.com/mfelix/quibble/internal/contextfiles"
	"github.com/mfelix/quibble/internal/session"
	"github.com/mfelix/quibble/internal/store"
)

// maxInputBytes caps the document size. Both agents receive the full
// document every round, so an oversized input multiplies across every
// prompt in the session.
const maxInputBytes = 1 << 20

func runCmd() *cobra.Command {
	var (
		outputFile    string
		maxRounds     int
		timeoutSecs   int
		contextDir    string
		jsonOutput    bool
		keepDebugLogs bool
	)

	cmd := &cobra.Command{
		Use:   "run <input.md>",
		Short: "Review a document until the agents reach consensus",
		Long: `Run a review session on a document.

Codex reviews the document, Claude responds to each finding and revises,
and Codex verifies any claimed agreement. Rounds repeat until consensus,
a stalemate, or the round limit.

Exit codes: 0 consensus or clean round limit, 1 unresolved major issues,
2 unresolved critical issues or failure.

Examples:
  quibble run draft.md                       # Output to draft.reviewed.md
  quibble run draft.md -o final.md           # Explicit output path
  quibble run draft.md --max-rounds 3        # Tighter round limit
  quibble run draft.md --json                # NDJSON event stream`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadGlobal()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-rounds") {
				cfg.MaxRounds = maxRounds
			}
			if cmd.Flags().Changed("timeout") {
				cfg.InactivityTimeoutSeconds = timeoutSecs
			}
			if keepDebugLogs {
				cfg.KeepDebugLogs = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// All input validation happens before any session state is
			// created; invalid input must never leave a partial session
			// behind.
			inputFile, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(inputFile)
			if err != nil {
				return fmt.Errorf("input file: %w", err)
			}
			if !info.Mode().IsRegular() {
				return fmt.Errorf("input file %s is not a regular file", inputFile)
			}
			if info.Size() > maxInputBytes {
				return fmt.Errorf("input file %s is %d bytes, max is %d", inputFile, info.Size(), maxInputBytes)
			}

			if outputFile == "" {
				outputFile = defaultOutputPath(inputFile)
			}
			outputFile, err = filepath.Abs(outputFile)
			if err != nil {
				return err
			}
			if outputFile == inputFile {
				return fmt.Errorf("output file must differ from input file")
			}

			baseDir := contextDir
			if baseDir == "" {
				baseDir = filepath.Dir(inputFile)
			}
			if info, err := os.Stat(baseDir); err != nil || !info.IsDir() {
				return fmt.Errorf("context dir %s is not a directory", baseDir)
			}

			content, err := os.ReadFile(inputFile)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			doc := string(content)
			ctxText := contextfiles.Collect(doc, baseDir)

			sessionID := store.NewSessionID(inputFile, time.Now())
			s, err := store.NewFSStore(filepath.Join(config.SessionsDir(), sessionID))
			if err != nil {
				return fmt.Errorf("create session store: %w", err)
			}
			mgr, err := session.New(s, sessionID, inputFile, outputFile, cfg.MaxRounds)
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}

			return execute(cmd, cfg, s, mgr, doc, ctxText, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: <input>.reviewed.<ext>)")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "maximum review rounds")
	cmd.Flags().IntVar(&timeoutSecs, "timeout", 0, "agent inactivity timeout in seconds")
	cmd.Flags().StringVar(&contextDir, "context-dir", "", "directory to scan for referenced context files (default: input file's directory)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit NDJSON events instead of rendered output")
	cmd.Flags().BoolVar(&keepDebugLogs, "keep-logs", false, "keep raw agent transcripts after a successful session")

	return cmd
}

// defaultOutputPath derives "draft.reviewed.md" from "draft.md".
func defaultOutputPath(inputFile string) string {
	ext := filepath.Ext(inputFile)
	return strings.TrimSuffix(inputFile, ext) + ".reviewed" + ext
}
