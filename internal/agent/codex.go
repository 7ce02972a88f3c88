package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CodexAgent runs the Codex CLI. Used as the critiquing collaborator:
// it produces the review and consensus-check payloads.
type CodexAgent struct {
	Command           string        // the codex command to run (default: "codex")
	InactivityTimeout time.Duration // kill after this much silence
}

// NewCodexAgent creates a new Codex agent.
func NewCodexAgent(command string) *CodexAgent {
	if command == "" {
		command = "codex"
	}
	return &CodexAgent{Command: command, InactivityTimeout: DefaultInactivityTimeout}
}

func (a *CodexAgent) Name() string { return "codex" }

func (a *CodexAgent) CommandName() string { return a.Command }

func (a *CodexAgent) buildArgs(outputFile string) []string {
	args := []string{
		"exec",
		"--full-auto",
		"-o", outputFile,
	}
	// "-" must come last so the prompt is read from stdin. Documents are
	// easily large enough to blow past argv limits.
	args = append(args, "-")
	return args
}

func (a *CodexAgent) Run(ctx context.Context, prompt string, output io.Writer) (string, error) {
	tmpFile, err := os.CreateTemp("", "quibble-codex-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	outputFile := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(outputFile)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	window := a.InactivityTimeout
	if window <= 0 {
		window = DefaultInactivityTimeout
	}
	wd := newWatchdog(cancel, window)
	defer wd.Stop()

	cmd := exec.CommandContext(runCtx, a.Command, a.buildArgs(outputFile)...)
	cmd.Stdin = strings.NewReader(prompt)

	// Codex prints progress on stderr; the payload lands in the output
	// file. Stream stderr and feed the watchdog from it.
	var stderr bytes.Buffer
	progress := io.Writer(&stderr)
	if sw := newSyncWriter(output); sw != nil {
		progress = io.MultiWriter(&stderr, sw)
	}
	cmd.Stderr = &activityWriter{w: progress, wd: wd}
	cmd.Stdout = &activityWriter{wd: wd}

	if err := cmd.Run(); err != nil {
		if wd.Expired() {
			return "", fmt.Errorf("codex: %w", ErrInactivityTimeout)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("codex failed: %w\nstderr: %s", err, stderr.String())
	}

	result, err := os.ReadFile(outputFile)
	if err != nil {
		return "", fmt.Errorf("read codex output: %w", err)
	}
	return string(result), nil
}

func init() {
	Register(NewCodexAgent(""))
}
