package agent

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// TestAgent is a scripted agent for testing. Each call returns the next
// queued output, or the last one when the script runs out.
type TestAgent struct {
	AgentName string
	Delay     time.Duration // simulated processing delay

	mu      sync.Mutex
	outputs []string
	errs    []error
	calls   int
	prompts []string
}

// NewTestAgent creates a test agent that replays the given outputs.
func NewTestAgent(name string, outputs ...string) *TestAgent {
	return &TestAgent{AgentName: name, outputs: outputs}
}

// Enqueue appends a scripted step. A non-nil err makes that call fail.
func (a *TestAgent) Enqueue(output string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outputs = append(a.outputs, output)
	for len(a.errs) < len(a.outputs)-1 {
		a.errs = append(a.errs, nil)
	}
	a.errs = append(a.errs, err)
}

// Calls reports how many times Run was invoked.
func (a *TestAgent) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Prompts returns the prompts received so far.
func (a *TestAgent) Prompts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.prompts...)
}

func (a *TestAgent) Name() string {
	if a.AgentName == "" {
		return "test"
	}
	return a.AgentName
}

func (a *TestAgent) Run(ctx context.Context, prompt string, output io.Writer) (string, error) {
	if a.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(a.Delay):
		}
	}

	a.mu.Lock()
	idx := a.calls
	a.calls++
	a.prompts = append(a.prompts, prompt)
	if len(a.outputs) == 0 {
		a.mu.Unlock()
		return "", fmt.Errorf("test agent %s has no scripted output", a.Name())
	}
	if idx >= len(a.outputs) {
		idx = len(a.outputs) - 1
	}
	out := a.outputs[idx]
	var err error
	if idx < len(a.errs) {
		err = a.errs[idx]
	}
	a.mu.Unlock()

	if err != nil {
		return "", err
	}
	if output != nil {
		if _, werr := output.Write([]byte(out)); werr != nil {
			return "", fmt.Errorf("write output: %w", werr)
		}
	}
	return out, nil
}
