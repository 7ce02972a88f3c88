// Package agent invokes the external review and authoring CLIs. Agents
// are opaque text-in/text-out services: they get a prompt, stream
// incremental progress to an optional writer, and return their full
// output for extraction upstream.
package agent

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// DefaultInactivityTimeout bounds agent silence, not total runtime. A
// process that keeps producing output is never killed.
const DefaultInactivityTimeout = 5 * time.Minute

// Agent is an external collaborator CLI.
type Agent interface {
	// Name returns the agent identifier (e.g. "codex", "claude").
	Name() string

	// Run executes the agent with the given prompt and returns its full
	// output. If output is non-nil, progress is streamed to it in
	// real-time. The run is bounded by an inactivity timeout that resets
	// on every received chunk.
	Run(ctx context.Context, prompt string, output io.Writer) (string, error)
}

// CommandAgent is an agent backed by an external command.
type CommandAgent interface {
	Agent
	// CommandName returns the executable command name.
	CommandName() string
}

// Registry holds available agents.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]Agent)
)

// Register adds an agent to the registry.
func Register(a Agent) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[a.Name()] = a
}

// Get returns an agent by name.
func Get(name string) (Agent, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent: %s", name)
	}
	return a, nil
}

// Available returns the names of all registered agents.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// IsInstalled checks whether an agent's command exists on PATH.
func IsInstalled(name string) bool {
	a, err := Get(name)
	if err != nil {
		return false
	}
	ca, ok := a.(CommandAgent)
	if !ok {
		return true // non-command agents are always runnable
	}
	_, err = exec.LookPath(ca.CommandName())
	return err == nil
}

// syncWriter serializes writes from multiple pipe readers to a shared
// output writer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// newSyncWriter returns nil if w is nil, so callers can test for it.
func newSyncWriter(w io.Writer) *syncWriter {
	if w == nil {
		return nil
	}
	return &syncWriter{w: w}
}

func (sw *syncWriter) Write(p []byte) (n int, err error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}
