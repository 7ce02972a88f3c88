package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mfelix/quibble/internal/agent"
	"github.com/mfelix/quibble/internal/config"
	"github.com/mfelix/quibble/internal/cycle"
	"github.com/mfelix/quibble/internal/event"
	"github.com/mfelix/quibble/internal/history"
	"github.com/mfelix/quibble/internal/session"
	"github.com/mfelix/quibble/internal/stats"
	"github.com/mfelix/quibble/internal/store"
)

// exitError is an error that signals a specific exit code
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// buildSink picks the human renderer on a terminal, NDJSON otherwise,
// unless --json forces NDJSON.
func buildSink(jsonOutput bool) event.Sink {
	if jsonOutput || !isatty.IsTerminal(os.Stdout.Fd()) {
		return event.NewNDJSONEmitter(os.Stdout)
	}
	return event.NewRenderer(os.Stdout, event.TerminalWidth(os.Stdout), verbose)
}

// openRecorder opens the history index. Postgres when a DSN is
// configured, local sqlite otherwise. Index failures degrade to Nop
// rather than blocking a review.
func openRecorder(cfg *config.Config) history.Recorder {
	if cfg.HistoryDSN != "" {
		rec, err := history.OpenPostgres(context.Background(), cfg.HistoryDSN)
		if err != nil {
			log.Printf("[cli] history index unavailable: %v", err)
			return history.Nop{}
		}
		return rec
	}
	rec, err := history.OpenSQLite(config.HistoryDBPath())
	if err != nil {
		log.Printf("[cli] history index unavailable: %v", err)
		return history.Nop{}
	}
	return rec
}

func buildAgents(cfg *config.Config) (reviewer, author agent.Agent) {
	timeout := time.Duration(cfg.InactivityTimeoutSeconds) * time.Second
	codex := agent.NewCodexAgent(cfg.CodexCmd)
	codex.InactivityTimeout = timeout
	claude := agent.NewClaudeAgent(cfg.ClaudeCmd)
	claude.InactivityTimeout = timeout
	return codex, claude
}

// sessionStore opens the file store for an existing session id.
func sessionStore(sessionID string) (store.Store, error) {
	dir := filepath.Join(config.SessionsDir(), sessionID)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return store.NewFSStore(dir)
}

// execute wires up and runs the orchestrator for a prepared session.
// Returns an exitError carrying the severity-graded code when the
// session did not end cleanly.
func execute(cmd *cobra.Command, cfg *config.Config, s store.Store, mgr *session.Manager, inputDoc, ctxText string, jsonOutput bool) error {
	m := mgr.Manifest()
	reviewer, author := buildAgents(cfg)
	recorder := openRecorder(cfg)
	defer recorder.Close()

	orch := cycle.New(cycle.Options{
		Store:         s,
		Manager:       mgr,
		Reviewer:      reviewer,
		Author:        author,
		InputDocument: inputDoc,
		ContextText:   ctxText,
		Sink:          buildSink(jsonOutput),
		Recorder:      recorder,
		Retry: agent.RetryConfig{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   2 * time.Second,
			MaxDelay:    30 * time.Second,
		},
		Debug:         cycle.NewDebugLog(config.LogsDir(), m.SessionID),
		KeepDebugLogs: cfg.KeepDebugLogs,
	})

	_, code, err := orch.Run(cmd.Context())
	if err != nil && code == 0 {
		return err
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// loadManager opens an existing session with statistics recomputed from
// its artifacts.
func loadManager(s store.Store) (*session.Manager, error) {
	return session.Load(s, stats.Recompute)
}
