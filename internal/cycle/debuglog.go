package cycle

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// DebugLog writes raw agent transcripts for post-mortem inspection.
// Everything here is best-effort: a failed write never fails a phase,
// and cleanup at successful completion is explicitly non-fatal.
type DebugLog struct {
	dir string
}

// NewDebugLog creates a transcript directory for the session. Returns a
// no-op logger when dir creation fails.
func NewDebugLog(baseDir, sessionID string) *DebugLog {
	dir := filepath.Join(baseDir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[debuglog] create %s: %v", dir, err)
		return &DebugLog{}
	}
	return &DebugLog{dir: dir}
}

// Write records one phase's raw agent output.
func (d *DebugLog) Write(round int, phase, raw string) {
	if d.dir == "" {
		return
	}
	name := fmt.Sprintf("round-%d-%s.txt", round, phase)
	if err := os.WriteFile(filepath.Join(d.dir, name), []byte(raw), 0o644); err != nil {
		log.Printf("[debuglog] write %s: %v", name, err)
	}
}

// Cleanup removes the transcript directory.
func (d *DebugLog) Cleanup() {
	if d.dir == "" {
		return
	}
	if err := os.RemoveAll(d.dir); err != nil {
		log.Printf("[debuglog] cleanup %s: %v", d.dir, err)
	}
}
