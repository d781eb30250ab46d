package testutil

import (
	"context"
	"sync"

	"github.com/roach88/ledgerbridge/internal/ledger"
)

// ScriptedEngine replays a fixed notification sequence.
//
// Next returns the scripted notifications in order, then blocks until Stop
// or Shutdown, then reports ledger.ErrStreamClosed. Emit appends to the
// script while the engine runs.
//
// Thread-safety: All methods are safe for concurrent use.
type ScriptedEngine struct {
	mu      sync.Mutex
	pending []ledger.Notification
	wake    chan struct{}
	stopped bool

	stops     int
	shutdowns int
	delivered int
}

// NewScriptedEngine creates an engine that will emit notes in order.
func NewScriptedEngine(notes ...ledger.Notification) *ScriptedEngine {
	e := &ScriptedEngine{wake: make(chan struct{})}
	for _, note := range notes {
		e.Emit(note)
	}
	return e
}

// Emit appends a notification. Seq is assigned when zero.
func (e *ScriptedEngine) Emit(note ledger.Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	if note.Seq == 0 {
		note.Seq = int64(e.delivered + len(e.pending) + 1)
	}
	e.pending = append(e.pending, note)
	e.signal()
}

// signal must be called with mu held.
func (e *ScriptedEngine) signal() {
	close(e.wake)
	e.wake = make(chan struct{})
}

func (e *ScriptedEngine) Next(ctx context.Context) (ledger.Notification, error) {
	for {
		e.mu.Lock()
		if len(e.pending) > 0 {
			note := e.pending[0]
			e.pending = e.pending[1:]
			e.delivered++
			e.mu.Unlock()
			return note, nil
		}
		if e.stopped {
			e.mu.Unlock()
			return ledger.Notification{}, ledger.ErrStreamClosed
		}
		wake := e.wake
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			return ledger.Notification{}, ctx.Err()
		case <-wake:
		}
	}
}

// Stop ends the stream once the scripted notifications are consumed.
func (e *ScriptedEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	if !e.stopped {
		e.stopped = true
		e.signal()
	}
}

func (e *ScriptedEngine) Shutdown(ctx context.Context) error {
	e.Stop()
	e.mu.Lock()
	e.shutdowns++
	e.mu.Unlock()
	return ctx.Err()
}

// Delivered reports how many notifications Next has returned.
func (e *ScriptedEngine) Delivered() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.delivered
}

// Stops and Shutdowns count calls for assertions.
func (e *ScriptedEngine) Stops() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}

func (e *ScriptedEngine) Shutdowns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdowns
}
