package event

import (
	"encoding/json"
	"io"
	"sync"
)

// NDJSONEmitter writes one JSON object per line, suitable for piping to
// automation. Agent chunks are skipped: they are progress noise, not
// state transitions.
type NDJSONEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewNDJSONEmitter(w io.Writer) *NDJSONEmitter {
	return &NDJSONEmitter{w: w}
}

func (e *NDJSONEmitter) Emit(ev Event) {
	if ev.Type == TypeAgentChunk {
		return
	}
	ev = Stamp(ev)
	content, err := json.Marshal(ev)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.w.Write(append(content, '\n'))
}
