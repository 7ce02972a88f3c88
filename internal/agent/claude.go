package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// ClaudeAgent runs the Claude Code CLI in print mode. Used as the
// authoring collaborator: it produces the response payloads.
type ClaudeAgent struct {
	Command           string        // the claude command to run (default: "claude")
	InactivityTimeout time.Duration // kill after this much silence
}

// NewClaudeAgent creates a new Claude agent.
func NewClaudeAgent(command string) *ClaudeAgent {
	if command == "" {
		command = "claude"
	}
	return &ClaudeAgent{Command: command, InactivityTimeout: DefaultInactivityTimeout}
}

func (a *ClaudeAgent) Name() string { return "claude" }

func (a *ClaudeAgent) CommandName() string { return a.Command }

func (a *ClaudeAgent) Run(ctx context.Context, prompt string, output io.Writer) (string, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	window := a.InactivityTimeout
	if window <= 0 {
		window = DefaultInactivityTimeout
	}
	wd := newWatchdog(cancel, window)
	defer wd.Stop()

	// Print mode: one-shot text response, no tool use. The prompt is
	// piped via stdin to avoid argv length limits on large documents.
	cmd := exec.CommandContext(runCtx, a.Command, "--print")
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	capture := io.Writer(&stdout)
	if sw := newSyncWriter(output); sw != nil {
		capture = io.MultiWriter(&stdout, sw)
	}
	cmd.Stdout = &activityWriter{w: capture, wd: wd}
	cmd.Stderr = &activityWriter{w: &stderr, wd: wd}

	if err := cmd.Run(); err != nil {
		if wd.Expired() {
			return "", fmt.Errorf("claude: %w", ErrInactivityTimeout)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("claude failed: %w\nstderr: %s", err, stderr.String())
	}

	return stdout.String(), nil
}

func init() {
	Register(NewClaudeAgent(""))
}
