package agent

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"
)

// ErrInactivityTimeout marks a run killed for going silent longer than
// the inactivity window. Classified transient: a retry may succeed.
var ErrInactivityTimeout = errors.New("agent produced no output within inactivity window")

// watchdog cancels a run when no output chunk arrives within the window.
// Every chunk resets the timer, so a slow but active process is never
// killed.
type watchdog struct {
	timer   *time.Timer
	window  time.Duration
	expired atomic.Bool
	done    chan struct{}
}

func newWatchdog(cancel context.CancelFunc, window time.Duration) *watchdog {
	wd := &watchdog{
		window: window,
		done:   make(chan struct{}),
	}
	wd.timer = time.AfterFunc(window, func() {
		wd.expired.Store(true)
		cancel()
	})
	return wd
}

// Touch resets the inactivity timer.
func (wd *watchdog) Touch() {
	select {
	case <-wd.done:
		return
	default:
	}
	wd.timer.Reset(wd.window)
}

// Stop disarms the watchdog.
func (wd *watchdog) Stop() {
	close(wd.done)
	wd.timer.Stop()
}

// Expired reports whether the watchdog fired.
func (wd *watchdog) Expired() bool {
	return wd.expired.Load()
}

// activityWriter forwards writes to an optional inner writer while
// touching the watchdog on every chunk.
type activityWriter struct {
	w  io.Writer // may be nil
	wd *watchdog
}

func (aw *activityWriter) Write(p []byte) (int, error) {
	aw.wd.Touch()
	if aw.w == nil {
		return len(p), nil
	}
	return aw.w.Write(p)
}
