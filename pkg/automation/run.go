// Package automation orchestrates long-running operations: full relationship
// syncs and bulk unfollow passes. At most one run is active at a time;
// starting a new one cancels and awaits the previous.
package automation

import (
	"context"
	"sync"
)

// RunType identifies the currently active automation run.
type RunType string

const (
	RunNone     RunType = "none"
	RunSync     RunType = "sync"
	RunUnfollow RunType = "unfollow"
)

// Holder enforces the single-active-run policy. Begin cancels whatever run
// is in flight, waits for it to release, then installs the new one.
type Holder struct {
	// beginMu serializes the whole cancel-wait-install sequence; without it
	// two concurrent Begins could each replace the same prior run and both
	// end up active.
	beginMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	runType RunType
}

// NewHolder returns an idle holder.
func NewHolder() *Holder {
	return &Holder{runType: RunNone}
}

// Begin registers a new run, replacing any active one. The returned context
// is cancelled when the run is superseded or Cancel is called; the returned
// finish func must be called exactly once when the run ends, on every exit
// path.
func (h *Holder) Begin(parent context.Context, t RunType) (context.Context, func()) {
	h.beginMu.Lock()
	defer h.beginMu.Unlock()

	h.mu.Lock()
	prevCancel, prevDone := h.cancel, h.done
	h.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	h.mu.Lock()
	h.cancel, h.done, h.runType = cancel, done, t
	h.mu.Unlock()

	var once sync.Once
	finish := func() {
		once.Do(func() {
			h.mu.Lock()
			if h.done == done {
				h.cancel, h.done, h.runType = nil, nil, RunNone
			}
			h.mu.Unlock()
			cancel()
			close(done)
		})
	}
	return ctx, finish
}

// Active returns the type of the run in flight, or RunNone.
func (h *Holder) Active() RunType {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runType
}

// Cancel aborts the active run, if any. It does not wait for the run to
// unwind; completion is observable through events or Wait.
func (h *Holder) Cancel() bool {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Wait blocks until the active run (if any) has finished.
func (h *Holder) Wait() {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()

	if done != nil {
		<-done
	}
}
